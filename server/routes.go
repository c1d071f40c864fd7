package server

import "net/http"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Hub auth
	RouteLogin        = "POST /api/auth/login"
	RouteRegister     = "POST /api/auth/register"
	RouteLogout       = "POST /api/auth/logout"
	RouteLogoutAll    = "POST /api/auth/logout-all"
	RouteMe           = "GET /api/auth/me"
	RouteSwitchTenant = "POST /api/auth/switch-tenant"

	// Tenant discovery + membership
	RouteSystems       = "GET /api/systems"
	RouteSystemTenants = "GET /api/systems/{systemSlug}/tenants"
	RouteMyTenants     = "GET /api/user/tenants"
	RouteJoinTenant    = "POST /api/user/tenants/join"
	RouteLeaveTenant   = "DELETE /api/user/tenants/{tenantID}"

	// Admin session (mounted behind the /admin-api proxy prefix in production)
	RouteAdminExchange = "POST /admin-api/api/auth/hub-exchange"
	RouteAdminRefresh  = "POST /admin-api/api/auth/refresh"
	RouteAdminLogout   = "POST /admin-api/api/auth/logout"
	RouteAdminMetrics  = "GET /admin-api/api/dashboard/metrics"

	// Super-admin panel
	RouteAdminTenantList   = "GET /api/super-admin/tenants"
	RouteAdminTenantCreate = "POST /api/super-admin/create-tenant"
	RouteAdminTenantPatch  = "PATCH /api/super-admin/tenants/{tenantID}"
	RouteAdminTenantDelete = "DELETE /api/super-admin/tenants/{tenantID}"
	RouteAdminUserList     = "GET /api/super-admin/users"
	RouteAdminUserBlock    = "POST /api/super-admin/users/{email}/block"
	RouteAdminUserUnblock  = "POST /api/super-admin/users/{email}/unblock"
	RouteAdminAuditList    = "GET /api/super-admin/audit-logs"

	// Operational
	RouteHealth     = "GET /health"
	RoutePrometheus = "GET /metrics"
)

func (s *Server) initRoutes() {
	register := func(pattern string, handler http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) {
		chain := append(s.APIMiddleware(pattern), mw...)
		s.RegisterRouteFunc(pattern, ChainMiddleware(handler, chain...))
	}

	// Hub auth
	register(RouteLogin, s.LoginHandler())
	register(RouteRegister, s.RegisterHandler())
	register(RouteLogout, s.LogoutHandler(), s.RequireHubAuth)
	register(RouteLogoutAll, s.LogoutAllHandler(), s.RequireHubAuth)
	register(RouteMe, s.MeHandler(), s.RequireHubAuth)
	register(RouteSwitchTenant, s.SwitchTenantHandler(), s.RequireHubAuth)

	// Tenant discovery + membership
	register(RouteSystems, s.SystemsHandler())
	register(RouteSystemTenants, s.SystemTenantsHandler())
	register(RouteMyTenants, s.MyTenantsHandler(), s.RequireHubAuth)
	register(RouteJoinTenant, s.JoinTenantHandler(), s.RequireHubAuth)
	register(RouteLeaveTenant, s.LeaveTenantHandler(), s.RequireHubAuth)

	// Admin session
	register(RouteAdminExchange, s.AdminExchangeHandler())
	register(RouteAdminRefresh, s.AdminRefreshHandler(), s.RequireAdminAuth)
	register(RouteAdminLogout, s.AdminLogoutHandler(), s.RequireAdminAuth)
	register(RouteAdminMetrics, s.AdminDashboardMetricsHandler(), s.RequireAdminAuth)

	// Super-admin panel
	register(RouteAdminTenantList, s.AdminTenantListHandler(), s.RequireAdminAuth)
	register(RouteAdminTenantCreate, s.AdminTenantCreateHandler(), s.RequireAdminAuth)
	register(RouteAdminTenantPatch, s.AdminTenantPatchHandler(), s.RequireAdminAuth)
	register(RouteAdminTenantDelete, s.AdminTenantDeleteHandler(), s.RequireAdminAuth)
	register(RouteAdminUserList, s.AdminUserListHandler(), s.RequireAdminAuth)
	register(RouteAdminUserBlock, s.AdminUserBlockHandler(true), s.RequireAdminAuth)
	register(RouteAdminUserUnblock, s.AdminUserBlockHandler(false), s.RequireAdminAuth)
	register(RouteAdminAuditList, s.AdminAuditListHandler(), s.RequireAdminAuth)

	// Operational
	s.RegisterRouteFunc(RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.routes = append(s.routes, RoutePrometheus)
	s.mux.Handle(RoutePrometheus, s.metrics.Handler())
}
