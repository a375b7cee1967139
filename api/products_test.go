package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/jonwraymond/storefront/cache"
	"github.com/jonwraymond/storefront/cart"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestSearchProducts_Params(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ProductPage{
			Products: []Product{{ID: "p1", Name: "Airpods", Price: decimal.RequireFromString("89.99"), CountInStock: 10}},
			Page:     2,
			Pages:    3,
		})
	})

	c := f.client()
	got, err := c.SearchProducts(context.Background(), " phone ", 2)
	if err != nil {
		t.Fatalf("SearchProducts() error = %v", err)
	}
	q := f.last().URL.Query()
	if q.Get("keyword") != "phone" || q.Get("pageNumber") != "2" {
		t.Errorf("query = %v, want keyword=phone pageNumber=2", q)
	}

	want := ProductPage{
		Products: []Product{{ID: "p1", Name: "Airpods", Price: decimal.RequireFromString("89.99"), CountInStock: 10}},
		Page:     2,
		Pages:    3,
	}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("SearchProducts() mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.SearchProducts(context.Background(), "", 0); err != nil {
		t.Fatalf("SearchProducts(all) error = %v", err)
	}
	q = f.last().URL.Query()
	if q.Has("keyword") || q.Get("pageNumber") != "1" {
		t.Errorf("query = %v, want only pageNumber=1", q)
	}
}

func TestProductsQuery_SameParamsSameKey(t *testing.T) {
	a := ProductsQuery("phone", 1).Request()
	b := ProductsQuery(" phone", 0).Request()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("requests differ (-a +b):\n%s", diff)
	}
}

func TestProduct_ConcurrentReadsShareOneRequest(t *testing.T) {
	f := newFakeAPI(t)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	f.handle("GET /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		writeJSON(w, http.StatusOK, Product{ID: r.PathValue("id"), Name: "Camera"})
	})

	c := f.client()
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Product, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.Product(ctx, "p1")
	}()
	<-entered

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Product(ctx, "p1")
		}()
	}
	// Let the joiners attach before the response arrives.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if results[i].ID != "p1" {
			t.Errorf("caller %d got %q", i, results[i].ID)
		}
	}
	if got := f.count("GET /api/products/p1"); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestUpdateProduct_InvalidatesWatchedProduct(t *testing.T) {
	f := newFakeAPI(t)
	var mu sync.Mutex
	name := "Camera"
	f.handle("GET /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		writeJSON(w, http.StatusOK, Product{ID: "p1", Name: name})
	})
	f.handle("PUT /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in ProductInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			message(w, http.StatusBadRequest, err.Error())
			return
		}
		mu.Lock()
		name = in.Name
		mu.Unlock()
		writeJSON(w, http.StatusOK, Product{ID: "p1", Name: in.Name})
	})

	c := f.client()
	ctx := context.Background()

	updates := make(chan Product, 4)
	first, sub, err := Watch(ctx, c, ProductQuery("p1"), func(p Product, err error) {
		if err == nil {
			updates <- p
		}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer sub.Close()
	if first.Name != "Camera" {
		t.Fatalf("first = %q, want Camera", first.Name)
	}

	if _, err := c.UpdateProduct(ctx, "p1", ProductInput{Name: "Camera Pro", Price: decimal.RequireFromString("949.99")}); err != nil {
		t.Fatalf("UpdateProduct() error = %v", err)
	}

	select {
	case p := <-updates:
		if p.Name != "Camera Pro" {
			t.Errorf("update = %q, want Camera Pro", p.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher not refetched after update")
	}
	if got := f.count("GET /api/products/p1"); got != 2 {
		t.Errorf("reads = %d, want 2", got)
	}
}

func TestWatch_RefetchWithUnchangedClock(t *testing.T) {
	f := newFakeAPI(t)
	var reads atomic.Int32
	f.handle("GET /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := reads.Add(1)
		writeJSON(w, http.StatusOK, Product{ID: "p1", Name: fmt.Sprintf("Camera v%d", n)})
	})

	// Every result carries the same timestamp, as on a coarse clock.
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	qc := cache.New(
		cache.WithPolicy(cache.Policy{KeepUnusedFor: time.Millisecond}),
		cache.WithClock(func() time.Time { return frozen }),
	)
	c := f.client(WithCache(qc))
	ctx := context.Background()

	updates := make(chan Product, 4)
	first, sub, err := Watch(ctx, c, ProductQuery("p1"), func(p Product, err error) {
		if err == nil {
			updates <- p
		}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer sub.Close()
	if first.Name != "Camera v1" {
		t.Fatalf("first = %q, want Camera v1", first.Name)
	}

	c.Cache().Invalidate(TagProduct)

	select {
	case p := <-updates:
		if p.Name != "Camera v2" {
			t.Errorf("update = %q, want Camera v2", p.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refetch with the same timestamp was not delivered")
	}
	select {
	case p := <-updates:
		t.Errorf("unexpected extra delivery %q", p.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeleteProduct_FailureInvalidatesNothing(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("GET /api/products/top", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []Product{{ID: "p1"}})
	})
	f.handle("DELETE /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		message(w, http.StatusNotFound, "Product not found")
	})

	c := f.client()
	ctx := context.Background()
	_, sub, err := Watch(ctx, c, TopProductsQuery(), nil)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer sub.Close()

	if err := c.DeleteProduct(ctx, "p1"); err == nil {
		t.Fatal("DeleteProduct() error = nil")
	}
	if snap := sub.Snapshot(); snap.Stale {
		t.Error("failed delete marked products stale")
	}
	if got := f.count("GET /api/products/top"); got != 1 {
		t.Errorf("reads = %d, want 1", got)
	}
}

func TestCreateReview_Validation(t *testing.T) {
	f := newFakeAPI(t)
	c := f.client()
	for _, in := range []ReviewInput{{Rating: 0}, {Rating: 6}} {
		if err := c.CreateReview(context.Background(), "p1", in); !IsValidation(err) {
			t.Errorf("CreateReview(%d) error = %v, want validation", in.Rating, err)
		}
	}
	if err := c.CreateReview(context.Background(), "", ReviewInput{Rating: 5}); !IsValidation(err) {
		t.Errorf("CreateReview(no id) error = %v, want validation", err)
	}
}

func TestUploadProductImage(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("image")
		if err != nil {
			message(w, http.StatusBadRequest, "no image")
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "PNGDATA" {
			message(w, http.StatusBadRequest, "bad content")
			return
		}
		writeJSON(w, http.StatusOK, UploadResult{Message: "Image uploaded successfully", Image: "/uploads/" + hdr.Filename})
	})

	got, err := f.client().UploadProductImage(context.Background(), "/tmp/camera.png", bytes.NewReader([]byte("PNGDATA")))
	if err != nil {
		t.Fatalf("UploadProductImage() error = %v", err)
	}
	if got.Image != "/uploads/camera.png" {
		t.Errorf("Image = %q, want /uploads/camera.png", got.Image)
	}
}

func TestProduct_CartProduct(t *testing.T) {
	p := Product{ID: "p1", Name: "Camera", Image: "/images/camera.jpg", Brand: "Cannon", Price: decimal.RequireFromString("929.99"), CountInStock: 5}
	want := cart.Product{ID: "p1", Name: "Camera", Image: "/images/camera.jpg", Price: decimal.RequireFromString("929.99"), CountInStock: 5}
	if diff := cmp.Diff(want, p.CartProduct(), decimalEqual); diff != "" {
		t.Errorf("CartProduct() mismatch (-want +got):\n%s", diff)
	}
	if !p.InStock() {
		t.Error("InStock() = false")
	}
}
