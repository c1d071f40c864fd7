package tenants

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// System is a product line tenants belong to: championships ("jogador"),
// court management ("quadra"), clips/video ("lances"), referees ("arbitro").
type System struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	DisplayName  string `json:"displayName"`
	Icon         string `json:"icon,omitempty"`
	Color        string `json:"color,omitempty"`
	DisplayOrder int    `json:"displayOrder,omitempty"`
}

// Tenant is one customer-facing instance of a system, backed by its own
// physical database on the tenant database host.
type Tenant struct {
	ID                string    `json:"id"`
	SystemID          string    `json:"systemId"`
	Slug              string    `json:"slug"`
	DisplayName       string    `json:"displayName"`
	LogoURL           string    `json:"logoUrl,omitempty"`
	PrimaryColor      string    `json:"primaryColor,omitempty"`
	DatabaseName      string    `json:"-"`
	DatabaseHost      string    `json:"-"`
	Active            bool      `json:"active"`
	AllowRegistration bool      `json:"allowRegistration"`
	CreatedAt         time.Time `json:"createdAt,omitempty"`
}

// Membership links a hub user to a tenant with a role.
type Membership struct {
	UserID   string    `json:"user_id"`
	TenantID string    `json:"tenant_id"`
	Role     string    `json:"role"`
	Active   bool      `json:"active"`
	JoinedAt time.Time `json:"joined_at"`
}

// Grant is the resolved view of a membership handed to clients: the tenant,
// its owning system, and the user's role in it.
type Grant struct {
	Tenant *Tenant
	System *System
	Role   string
}

var slugRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,46}[a-z0-9])?$`)

// ValidateSlug enforces the slug shape shared by tenants and systems:
// lowercase alphanumerics and hyphens, 1-48 chars, no leading/trailing hyphen.
func ValidateSlug(slug string) (string, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugRe.MatchString(slug) {
		return "", fmt.Errorf("invalid slug %q", slug)
	}
	return slug, nil
}

// DatabaseNameForSlug derives the physical database name for a new tenant.
func DatabaseNameForSlug(slug string) string {
	return "varzea_" + strings.ReplaceAll(slug, "-", "_")
}
