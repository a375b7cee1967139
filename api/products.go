package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jonwraymond/storefront/cart"
	"github.com/jonwraymond/storefront/observe"
)

// Product is a catalog entry.
type Product struct {
	ID           string          `json:"_id"`
	User         string          `json:"user,omitempty"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Reviews      []Review        `json:"reviews,omitempty"`
	Rating       float64         `json:"rating"`
	NumReviews   int             `json:"numReviews"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"countInStock"`
	CreatedAt    time.Time       `json:"createdAt,omitzero"`
}

// CartProduct returns the fields the cart keeps for p.
func (p Product) CartProduct() cart.Product {
	return cart.Product{
		ID:           p.ID,
		Name:         p.Name,
		Image:        p.Image,
		Price:        p.Price,
		CountInStock: p.CountInStock,
	}
}

// InStock reports whether p can be added to a cart.
func (p Product) InStock() bool { return p.CountInStock > 0 }

// Review is a customer review of a product.
type Review struct {
	ID        string    `json:"_id,omitempty"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	User      string    `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// ReviewInput is a new review.
type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// ProductPage is one page of search results.
type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
}

// ProductInput holds the editable fields of a product.
type ProductInput struct {
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	CountInStock int             `json:"countInStock"`
	Description  string          `json:"description"`
}

// UploadResult is the stored image reference returned by an upload.
type UploadResult struct {
	Message string `json:"message"`
	Image   string `json:"image"`
}

const resourceProducts = "products"

// ProductsQuery searches the catalog. An empty keyword lists everything;
// page 0 means the first page.
func ProductsQuery(keyword string, page int) Query[ProductPage] {
	keyword = strings.TrimSpace(keyword)
	if page < 1 {
		page = 1
	}
	q := url.Values{"pageNumber": {strconv.Itoa(page)}}
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	return Query[ProductPage]{
		resource: resourceProducts,
		endpoint: "getProducts",
		path:     "/products",
		query:    q,
		args:     map[string]string{"keyword": keyword, "pageNumber": strconv.Itoa(page)},
		tags:     []string{TagProducts},
	}
}

// ProductQuery loads one product.
func ProductQuery(id string) Query[Product] {
	return Query[Product]{
		resource: resourceProducts,
		endpoint: "getProductDetails",
		path:     "/products/" + url.PathEscape(id),
		args:     map[string]string{"id": id},
		tags:     []string{TagProduct},
	}
}

// TopProductsQuery loads the best rated products.
func TopProductsQuery() Query[[]Product] {
	return Query[[]Product]{
		resource: resourceProducts,
		endpoint: "getTopProducts",
		path:     "/products/top",
		tags:     []string{TagProducts},
	}
}

// SearchProducts returns one page of products matching keyword.
func (c *Client) SearchProducts(ctx context.Context, keyword string, page int) (ProductPage, error) {
	return Get(ctx, c, ProductsQuery(keyword, page))
}

// Product returns the product with id.
func (c *Client) Product(ctx context.Context, id string) (Product, error) {
	if err := requireID(id); err != nil {
		return Product{}, err
	}
	return Get(ctx, c, ProductQuery(id))
}

// TopProducts returns the best rated products.
func (c *Client) TopProducts(ctx context.Context) ([]Product, error) {
	return Get(ctx, c, TopProductsQuery())
}

// CreateProduct creates a placeholder product for an admin to edit.
func (c *Client) CreateProduct(ctx context.Context) (Product, error) {
	var out Product
	err := c.write(ctx, KindCreateProduct, request{
		op:   productOp(KindCreateProduct, http.MethodPost),
		path: "/products",
		out:  &out,
	})
	return out, err
}

// UpdateProduct replaces the editable fields of product id.
func (c *Client) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	if err := requireID(id); err != nil {
		return Product{}, err
	}
	var out Product
	err := c.write(ctx, KindUpdateProduct, request{
		op:   productOp(KindUpdateProduct, http.MethodPut),
		path: "/products/" + url.PathEscape(id),
		body: jsonBody(in),
		out:  &out,
	})
	return out, err
}

// DeleteProduct removes product id.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return c.write(ctx, KindDeleteProduct, request{
		op:   productOp(KindDeleteProduct, http.MethodDelete),
		path: "/products/" + url.PathEscape(id),
	})
}

// CreateReview adds the signed-in user's review to product id.
func (c *Client) CreateReview(ctx context.Context, id string, in ReviewInput) error {
	if err := requireID(id); err != nil {
		return err
	}
	if in.Rating < 1 || in.Rating > 5 {
		return &Error{Kind: KindValidation, Message: "rating must be between 1 and 5"}
	}
	return c.write(ctx, KindCreateReview, request{
		op:   productOp(KindCreateReview, http.MethodPost),
		path: "/products/" + url.PathEscape(id) + "/reviews",
		body: jsonBody(in),
	})
}

// UploadProductImage uploads an image as multipart form field "image" and
// returns the stored reference. r is read once into memory so the request
// can be rebuilt per attempt.
func (c *Client) UploadProductImage(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return UploadResult{}, fmt.Errorf("api: read image: %w", err)
	}

	var out UploadResult
	err = c.write(ctx, KindUploadImage, request{
		op:   productOp(KindUploadImage, http.MethodPost),
		path: "/upload",
		body: func() (io.Reader, string, error) {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("image", filepath.Base(filename))
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(data); err != nil {
				return nil, "", err
			}
			if err := mw.Close(); err != nil {
				return nil, "", err
			}
			return &buf, mw.FormDataContentType(), nil
		},
		out: &out,
	})
	return out, err
}

func productOp(name, method string) observe.OperationMeta {
	return observe.OperationMeta{Resource: resourceProducts, Name: name, Method: method}
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &Error{Kind: KindValidation, Message: "id is required"}
	}
	return nil
}
