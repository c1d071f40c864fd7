package hubclient

import (
	"net/url"
	"strings"
)

// LocalSystemSlug is the system served by the hub deployment itself. Entering
// one of its tenants is a plain route change, no handoff needed.
const LocalSystemSlug = "lances"

// Handoff is the computed destination for entering a tenant. When Local is
// false the caller must perform a full navigation: the destination is a
// separately deployed application that receives identity via the URL.
type Handoff struct {
	URL   string
	Local bool
}

// BuildHandoffURL computes the destination for a tenant. Remote systems get
// `/{systemSlug}/{tenantSlug}` with the query contract hub_token, tenant,
// and (when the grant carries one) role. The parameter names are a fixed,
// versionless contract with the destination systems.
//
// The handoff is one-shot: the destination reads the parameters once on load
// and keeps its own session from there. If that session later expires,
// re-entry repeats the full handoff from the hub.
func BuildHandoffURL(grant TenantGrant, hubToken string) Handoff {
	systemSlug := ""
	if grant.System != nil {
		systemSlug = grant.System.Slug
	}

	if systemSlug == "" || systemSlug == LocalSystemSlug {
		return Handoff{URL: "/" + LocalSystemSlug, Local: true}
	}

	var query strings.Builder
	query.WriteString("hub_token=")
	query.WriteString(url.QueryEscape(hubToken))
	query.WriteString("&tenant=")
	query.WriteString(url.QueryEscape(grant.Slug))
	if grant.Role != "" {
		query.WriteString("&role=")
		query.WriteString(url.QueryEscape(grant.Role))
	}

	return Handoff{
		URL: "/" + url.PathEscape(systemSlug) + "/" + url.PathEscape(grant.Slug) + "?" + query.String(),
	}
}

// HandoffTo persists the tenant selection snapshot and theme, then computes
// the destination using the current hub token.
func (c *Client) HandoffTo(grant TenantGrant) Handoff {
	c.persistTenantSelection(&grant)
	return BuildHandoffURL(grant, c.tokens.Token())
}
