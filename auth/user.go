package auth

import (
	"fmt"
	"strings"
)

// UserInfo is the signed-in user as returned by the login endpoint.
type UserInfo struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	Token   string `json:"token,omitempty"`
}

// Validate checks the fields a session needs.
func (u UserInfo) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidUser)
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: missing email", ErrInvalidUser)
	}
	return nil
}

// FirstName returns the first word of Name, as shown in the header menu.
func (u UserInfo) FirstName() string {
	name, _, _ := strings.Cut(strings.TrimSpace(u.Name), " ")
	return name
}
