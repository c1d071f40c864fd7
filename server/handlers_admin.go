package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/varzeaprime/go-hub-server/adminauth"
	"github.com/varzeaprime/go-hub-server/audit"
	"github.com/varzeaprime/go-hub-server/provision"
	"github.com/varzeaprime/go-hub-server/tenants"
	"github.com/varzeaprime/go-hub-server/users"
)

// adminUserDTO is the admin-surface view of a user. Unlike the public user
// payload it exposes the super-admin flag and block state.
type adminUserDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	IsSuperAdmin  bool       `json:"is_superuser"`
	Active        bool       `json:"is_active"`
	Blocked       bool       `json:"blocked"`
	BlockedReason string     `json:"blocked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

func adminUserToDTO(u *users.User) adminUserDTO {
	return adminUserDTO{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		IsSuperAdmin:  u.SuperAdmin,
		Active:        u.Active,
		Blocked:       u.Blocked,
		BlockedReason: u.BlockedReason,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}

// adminSessionResponse is the payload of both exchange and refresh. The CSRF
// token is returned once here and must be echoed on mutating admin requests.
type adminSessionResponse struct {
	Token     string       `json:"token"`
	CSRFToken string       `json:"csrf_token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      adminUserDTO `json:"user"`
}

func adminSessionToResponse(session *adminauth.Session) adminSessionResponse {
	return adminSessionResponse{
		Token:     session.Token,
		CSRFToken: session.CSRFToken,
		ExpiresAt: session.ExpiresAt,
		User:      adminUserToDTO(session.User),
	}
}

func (s *Server) AdminExchangeHandler() http.HandlerFunc {
	type request struct {
		HubToken string `json:"hub_token"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil || req.HubToken == "" {
			respondError(w, http.StatusBadRequest, "hub_token is required")
			return
		}

		session, err := s.admin.Exchange(req.HubToken)
		if err != nil {
			s.metrics.AdminExchanges.WithLabelValues("failure").Inc()
			switch {
			case errors.Is(err, adminauth.ErrNotSuperAdmin):
				respondError(w, http.StatusForbidden, err.Error())
			default:
				respondError(w, http.StatusUnauthorized, err.Error())
			}
			return
		}

		s.metrics.AdminExchanges.WithLabelValues("success").Inc()
		respondJSON(w, http.StatusOK, adminSessionToResponse(session))
	}
}

func (s *Server) AdminRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.admin.Refresh(tokenFromContext(r.Context()))
		if err != nil {
			s.metrics.AdminRefreshes.WithLabelValues("failure").Inc()
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		s.metrics.AdminRefreshes.WithLabelValues("success").Inc()
		respondJSON(w, http.StatusOK, adminSessionToResponse(session))
	}
}

func (s *Server) AdminLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = s.admin.Logout(tokenFromContext(r.Context()))
		respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	}
}

func (s *Server) AdminDashboardMetricsHandler() http.HandlerFunc {
	type response struct {
		ActiveSessions int `json:"active_sessions"`
		TotalTenants   int `json:"total_tenants"`
		TotalUsers     int `json:"total_users"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		active, err := s.repos.Sessions.CountActive()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to count sessions")
			return
		}
		s.metrics.ActiveSessions.Set(float64(active))

		tenantList, err := s.repos.Tenants.ListTenants(0, 1)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to count tenants")
			return
		}
		userList, err := s.repos.Users.List(0, 1)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to count users")
			return
		}

		respondJSON(w, http.StatusOK, response{
			ActiveSessions: active,
			TotalTenants:   tenantList.Total,
			TotalUsers:     userList.Total,
		})
	}
}

func (s *Server) AdminTenantListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r, 50)
		list, err := s.repos.Tenants.ListTenants(offset, limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list tenants")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"tenants": list.Tenants,
			"total":   list.Total,
			"offset":  list.Offset,
			"limit":   list.Limit,
		})
	}
}

func (s *Server) AdminTenantCreateHandler() http.HandlerFunc {
	type request struct {
		Slug          string `json:"slug"`
		SystemSlug    string `json:"systemSlug"`
		DisplayName   string `json:"displayName"`
		PrimaryColor  string `json:"primaryColor"`
		AdminName     string `json:"adminName"`
		AdminEmail    string `json:"adminEmail"`
		AdminPassword string `json:"adminPassword"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if s.provisioner == nil {
			respondError(w, http.StatusServiceUnavailable, "tenant provisioning is not configured")
			return
		}

		var req request
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := s.provisioner.Provision(r.Context(), provision.Params{
			Slug:          req.Slug,
			SystemSlug:    req.SystemSlug,
			DisplayName:   req.DisplayName,
			PrimaryColor:  req.PrimaryColor,
			AdminName:     req.AdminName,
			AdminEmail:    req.AdminEmail,
			AdminPassword: req.AdminPassword,
		})
		if err != nil {
			s.metrics.TenantProvision.WithLabelValues("failure").Inc()
			switch {
			case errors.Is(err, tenants.ErrSlugTaken):
				respondError(w, http.StatusConflict, err.Error())
			case errors.Is(err, tenants.ErrNotFound):
				respondError(w, http.StatusNotFound, "system not found")
			default:
				respondError(w, http.StatusInternalServerError, "tenant provisioning failed")
			}
			return
		}

		s.metrics.TenantProvision.WithLabelValues("success").Inc()
		respondJSON(w, http.StatusCreated, map[string]any{
			"tenant":   result.Tenant,
			"database": result.DatabaseName,
		})
	}
}

func (s *Server) AdminTenantPatchHandler() http.HandlerFunc {
	type request struct {
		DisplayName       *string `json:"displayName"`
		LogoURL           *string `json:"logoUrl"`
		PrimaryColor      *string `json:"primaryColor"`
		Active            *bool   `json:"active"`
		AllowRegistration *bool   `json:"allowRegistration"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.repos.Tenants.GetTenant(r.PathValue("tenantID"))
		if err != nil {
			respondError(w, http.StatusNotFound, "tenant not found")
			return
		}

		var req request
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.DisplayName != nil {
			tenant.DisplayName = *req.DisplayName
		}
		if req.LogoURL != nil {
			tenant.LogoURL = *req.LogoURL
		}
		if req.PrimaryColor != nil {
			tenant.PrimaryColor = *req.PrimaryColor
		}
		if req.Active != nil {
			tenant.Active = *req.Active
		}
		if req.AllowRegistration != nil {
			tenant.AllowRegistration = *req.AllowRegistration
		}

		if err := s.repos.Tenants.UpsertTenant(tenant); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to update tenant")
			return
		}

		actor := userFromContext(r.Context())
		s.recorder.Record(actor.ID, "admin.tenant.update", tenant.ID, nil)
		respondJSON(w, http.StatusOK, map[string]any{"tenant": tenant})
	}
}

func (s *Server) AdminTenantDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.provisioner == nil {
			respondError(w, http.StatusServiceUnavailable, "tenant provisioning is not configured")
			return
		}

		tenantID := r.PathValue("tenantID")
		if err := s.provisioner.Deprovision(r.Context(), tenantID); err != nil {
			if errors.Is(err, tenants.ErrNotFound) {
				respondError(w, http.StatusNotFound, "tenant not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "failed to delete tenant")
			return
		}

		actor := userFromContext(r.Context())
		s.recorder.Record(actor.ID, "admin.tenant.delete", tenantID, nil)
		respondJSON(w, http.StatusOK, map[string]string{"message": "tenant deleted"})
	}
}

func (s *Server) AdminUserListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r, 50)
		list, err := s.repos.Users.List(offset, limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list users")
			return
		}

		dtos := make([]adminUserDTO, 0, len(list.Users))
		for _, u := range list.Users {
			dtos = append(dtos, adminUserToDTO(u))
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"users":  dtos,
			"total":  list.Total,
			"offset": list.Offset,
			"limit":  list.Limit,
		})
	}
}

// AdminUserBlockHandler serves both the block and unblock routes. Blocking a
// user also revokes every hub session they hold.
func (s *Server) AdminUserBlockHandler(block bool) http.HandlerFunc {
	type request struct {
		Reason string `json:"reason"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		email := r.PathValue("email")
		user, err := s.repos.Users.GetByEmail(email)
		if err != nil {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}

		var req request
		if block {
			if err := decodeJSON(r, &req); err != nil {
				respondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		if err := s.repos.Users.SetBlocked(user.Email, block, req.Reason); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to update user")
			return
		}
		if block {
			_ = s.repos.Sessions.RevokeAllForUser(user.ID, "user_blocked")
		}

		actor := userFromContext(r.Context())
		action := "admin.user.unblock"
		if block {
			action = "admin.user.block"
		}
		s.recorder.Record(actor.ID, action, user.ID, map[string]any{"reason": req.Reason})
		respondJSON(w, http.StatusOK, map[string]string{"message": "user updated"})
	}
}

func (s *Server) AdminAuditListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r, 100)
		events, total, err := s.recorder.List(audit.ListFilter{
			ActorID: r.URL.Query().Get("actor"),
			Action:  r.URL.Query().Get("action"),
			Offset:  offset,
			Limit:   limit,
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list audit events")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"events": events,
			"total":  total,
			"offset": offset,
			"limit":  limit,
		})
	}
}

func pagination(r *http.Request, defaultLimit int) (offset, limit int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	return offset, limit
}
