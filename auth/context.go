package auth

import "context"

type contextKey int

const userKey contextKey = iota

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *UserInfo) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user carried by ctx, or nil.
func UserFromContext(ctx context.Context) *UserInfo {
	u, _ := ctx.Value(userKey).(*UserInfo)
	return u
}

// RequireUser returns the signed-in user or ErrUnauthenticated.
func RequireUser(ctx context.Context) (*UserInfo, error) {
	u := UserFromContext(ctx)
	if u == nil || u.ID == "" {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// RequireAdmin returns the signed-in admin user. Non-admins get ErrForbidden.
func RequireAdmin(ctx context.Context) (*UserInfo, error) {
	u, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin {
		return nil, ErrForbidden
	}
	return u, nil
}
