package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// User is the hub's view of the authenticated account.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// System identifies the product line a tenant belongs to.
type System struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
}

// TenantGrant is one tenant the user can enter, with their role and the
// owning system inline.
type TenantGrant struct {
	ID           string  `json:"id"`
	Slug         string  `json:"slug"`
	DisplayName  string  `json:"displayName"`
	LogoURL      string  `json:"logoUrl,omitempty"`
	PrimaryColor string  `json:"primaryColor,omitempty"`
	Role         string  `json:"role"`
	System       *System `json:"system,omitempty"`
}

// Theme is the tenant brand snapshot persisted for the next page load.
type Theme struct {
	PrimaryColor    string `json:"primaryColor,omitempty"`
	SecondaryColor  string `json:"secondaryColor,omitempty"`
	AccentColor     string `json:"accentColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// APIError carries the status and server-supplied message of a failed call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type sessionPayload struct {
	Token        string        `json:"token"`
	User         *User         `json:"user"`
	IsSuperAdmin bool          `json:"isSuperAdmin"`
	Tenants      []TenantGrant `json:"tenants"`
}

type profilePayload struct {
	User            *User         `json:"user"`
	IsSuperAdmin    bool          `json:"isSuperAdmin"`
	CurrentTenantID string        `json:"currentTenantId"`
	Tenants         []TenantGrant `json:"tenants"`
}

type adminSessionPayload struct {
	Token     string     `json:"token"`
	CSRFToken string     `json:"csrf_token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *AdminUser `json:"user"`
}

// AdminUser is the admin-surface profile returned by exchange and refresh.
type AdminUser struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	IsSuperAdmin bool   `json:"is_superuser"`
}

// doJSON performs one request and decodes the response into out (when out is
// non-nil). Non-2xx responses become *APIError with the server's error text.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[hubclient doJSON] marshal body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "[hubclient doJSON] build request")
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "[hubclient doJSON] do")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: decodeErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "[hubclient doJSON] decode response")
	}
	return nil
}

func decodeErrorMessage(body io.Reader) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return ""
	}
	return envelope.Error
}
