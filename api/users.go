package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonwraymond/storefront/auth"
	"github.com/jonwraymond/storefront/observe"
)

// Credentials sign a user in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration creates an account.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate changes the signed-in user's profile. An empty Password
// keeps the current one.
type ProfileUpdate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// UserUpdate is an admin edit of another user.
type UserUpdate struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

const resourceUsers = "users"

// UsersQuery lists all users. Admin only.
func UsersQuery() Query[[]auth.UserInfo] {
	return Query[[]auth.UserInfo]{
		resource: resourceUsers,
		endpoint: "getUsers",
		path:     "/users",
		tags:     []string{TagUser},
	}
}

// UserQuery loads one user. Admin only.
func UserQuery(id string) Query[auth.UserInfo] {
	return Query[auth.UserInfo]{
		resource: resourceUsers,
		endpoint: "getUserDetails",
		path:     "/users/" + url.PathEscape(id),
		args:     map[string]string{"id": id},
		tags:     []string{TagUser},
	}
}

// Login signs in and returns the user. The session cookie is kept by the
// client's cookie jar.
func (c *Client) Login(ctx context.Context, in Credentials) (auth.UserInfo, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return auth.UserInfo{}, &Error{Kind: KindValidation, Message: "email and password are required"}
	}
	return c.userWrite(ctx, KindLogin, http.MethodPost, "/users/auth", in)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, in Registration) (auth.UserInfo, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return auth.UserInfo{}, &Error{Kind: KindValidation, Message: "name, email and password are required"}
	}
	return c.userWrite(ctx, KindRegister, http.MethodPost, "/users", in)
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.write(ctx, KindLogout, request{
		op:   userOp(KindLogout, http.MethodPost),
		path: "/users/logout",
	})
}

// UpdateProfile changes the signed-in user's profile.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (auth.UserInfo, error) {
	return c.userWrite(ctx, KindUpdateProfile, http.MethodPut, "/users/profile", in)
}

// Users lists all users. Admin only.
func (c *Client) Users(ctx context.Context) ([]auth.UserInfo, error) {
	return Get(ctx, c, UsersQuery())
}

// User returns user id. Admin only.
func (c *Client) User(ctx context.Context, id string) (auth.UserInfo, error) {
	if err := requireID(id); err != nil {
		return auth.UserInfo{}, err
	}
	return Get(ctx, c, UserQuery(id))
}

// UpdateUser edits user id. Admin only.
func (c *Client) UpdateUser(ctx context.Context, id string, in UserUpdate) (auth.UserInfo, error) {
	if err := requireID(id); err != nil {
		return auth.UserInfo{}, err
	}
	return c.userWrite(ctx, KindUpdateUser, http.MethodPut, "/users/"+url.PathEscape(id), in)
}

// DeleteUser removes user id. Admin only.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return c.write(ctx, KindDeleteUser, request{
		op:   userOp(KindDeleteUser, http.MethodDelete),
		path: "/users/" + url.PathEscape(id),
	})
}

func (c *Client) userWrite(ctx context.Context, kind, method, path string, body any) (auth.UserInfo, error) {
	var out auth.UserInfo
	err := c.write(ctx, kind, request{
		op:   userOp(kind, method),
		path: path,
		body: jsonBody(body),
		out:  &out,
	})
	return out, err
}

func userOp(name, method string) observe.OperationMeta {
	return observe.OperationMeta{Resource: resourceUsers, Name: name, Method: method}
}
