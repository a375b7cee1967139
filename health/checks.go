package health

import (
	"context"

	"github.com/jonwraymond/storefront/api"
	"github.com/jonwraymond/storefront/storage"
)

// Pinger is implemented by stores that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageCheck reports whether st is usable. Stores without Ping are
// checked by reading the cart key.
func StorageCheck(st storage.Storage) Checker {
	return NewCheckerFunc("storage", func(ctx context.Context) Result {
		details := map[string]any{}
		if p, ok := st.(interface{ Path() string }); ok {
			details["path"] = p.Path()
		}

		var err error
		if p, ok := st.(Pinger); ok {
			err = p.Ping(ctx)
		} else {
			_, _, err = st.Get(ctx, storage.KeyCart)
		}
		if err != nil {
			return Unhealthy("storage unavailable", err).WithDetails(details)
		}
		return Healthy("storage reachable").WithDetails(details)
	})
}

// ProductLister is the part of the API client APICheck needs.
type ProductLister interface {
	SearchProducts(ctx context.Context, keyword string, page int) (api.ProductPage, error)
}

// APICheck asks the backend for the first product page. Transport failures
// and 5xx responses are unhealthy; other error responses mean the backend
// answered and are degraded.
func APICheck(c ProductLister) Checker {
	return NewCheckerFunc("api", func(ctx context.Context) Result {
		page, err := c.SearchProducts(ctx, "", 1)
		switch {
		case err == nil:
			return Healthy("product list reachable").WithDetails(map[string]any{
				"products": len(page.Products),
				"pages":    page.Pages,
			})
		case api.IsTransport(err) || api.StatusCode(err) >= 500:
			return Unhealthy("backend unreachable", err)
		default:
			return Degraded("backend returned an error", err)
		}
	})
}
