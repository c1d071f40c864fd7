package server

import (
	"errors"
	"net/http"

	"github.com/varzeaprime/go-hub-server/auth"
	"github.com/varzeaprime/go-hub-server/tenants"
	"github.com/varzeaprime/go-hub-server/users"
)

// grantDTO is the wire shape of one tenant the user can enter, flattened with
// the role and the owning system inline.
type grantDTO struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	DisplayName  string     `json:"displayName"`
	LogoURL      string     `json:"logoUrl,omitempty"`
	PrimaryColor string     `json:"primaryColor,omitempty"`
	Role         string     `json:"role"`
	System       *systemDTO `json:"system,omitempty"`
}

type systemDTO struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
}

type sessionResponse struct {
	Token        string      `json:"token"`
	User         *users.User `json:"user"`
	IsSuperAdmin bool        `json:"isSuperAdmin"`
	Tenants      []grantDTO  `json:"tenants"`
}

type profileResponse struct {
	User            *users.User `json:"user"`
	IsSuperAdmin    bool        `json:"isSuperAdmin"`
	CurrentTenantID string      `json:"currentTenantId,omitempty"`
	Tenants         []grantDTO  `json:"tenants"`
}

func grantsToDTO(grants []*tenants.Grant) []grantDTO {
	out := make([]grantDTO, 0, len(grants))
	for _, g := range grants {
		dto := grantDTO{
			ID:           g.Tenant.ID,
			Slug:         g.Tenant.Slug,
			DisplayName:  g.Tenant.DisplayName,
			LogoURL:      g.Tenant.LogoURL,
			PrimaryColor: g.Tenant.PrimaryColor,
			Role:         g.Role,
		}
		if g.System != nil {
			dto.System = &systemDTO{
				Slug:        g.System.Slug,
				DisplayName: g.System.DisplayName,
				Icon:        g.System.Icon,
				Color:       g.System.Color,
			}
		}
		out = append(out, dto)
	}
	return out
}

func (s *Server) LoginHandler() http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		client := auth.ClientInfo{IP: clientIP(r), UserAgent: r.UserAgent()}
		result, err := s.auth.Login(req.Email, req.Password, client)
		if err != nil {
			s.metrics.Logins.WithLabelValues("failure").Inc()
			switch {
			case errors.Is(err, auth.InvalidCredentialsErr):
				respondError(w, http.StatusUnauthorized, err.Error())
			case errors.Is(err, auth.AccountDisabledErr), errors.Is(err, auth.AccountBlockedErr):
				respondError(w, http.StatusForbidden, err.Error())
			default:
				respondError(w, http.StatusInternalServerError, "login failed")
			}
			return
		}

		s.metrics.Logins.WithLabelValues("success").Inc()
		respondJSON(w, http.StatusOK, sessionResponse{
			Token:        result.Token,
			User:         result.User,
			IsSuperAdmin: result.IsSuperAdmin,
			Tenants:      grantsToDTO(result.Grants),
		})
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params auth.RegisterParams
		if err := decodeJSON(r, &params); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		client := auth.ClientInfo{IP: clientIP(r), UserAgent: r.UserAgent()}
		result, err := s.auth.Register(params, client)
		if err != nil {
			switch {
			case errors.Is(err, auth.EmailTakenErr):
				respondError(w, http.StatusConflict, err.Error())
			default:
				respondError(w, http.StatusBadRequest, err.Error())
			}
			return
		}

		s.metrics.Registrations.Inc()
		respondJSON(w, http.StatusCreated, sessionResponse{
			Token:        result.Token,
			User:         result.User,
			IsSuperAdmin: result.IsSuperAdmin,
			Tenants:      grantsToDTO(result.Grants),
		})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Logout never fails from the client's perspective.
		_ = s.auth.Logout(tokenFromContext(r.Context()))
		respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	}
}

func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.LogoutAll(tokenFromContext(r.Context())); err != nil {
			respondError(w, http.StatusInternalServerError, "logout failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "logged out everywhere"})
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := s.auth.Me(tokenFromContext(r.Context()))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		respondJSON(w, http.StatusOK, profileResponse{
			User:            profile.User,
			IsSuperAdmin:    profile.IsSuperAdmin,
			CurrentTenantID: profile.CurrentTenantID,
			Tenants:         grantsToDTO(profile.Grants),
		})
	}
}

func (s *Server) SwitchTenantHandler() http.HandlerFunc {
	type request struct {
		TenantID   string `json:"tenantId"`
		TenantSlug string `json:"tenantSlug"`
	}
	type tenantDTO struct {
		ID          string `json:"id"`
		Slug        string `json:"slug"`
		DisplayName string `json:"displayName"`
	}
	type response struct {
		Tenant tenantDTO `json:"tenant"`
		Role   string    `json:"role"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TenantID == "" && req.TenantSlug == "" {
			respondError(w, http.StatusBadRequest, "tenantId or tenantSlug is required")
			return
		}

		result, err := s.auth.SwitchTenant(tokenFromContext(r.Context()), req.TenantID, req.TenantSlug)
		if err != nil {
			switch {
			case errors.Is(err, auth.TenantNotFoundErr):
				respondError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, auth.NotMemberErr):
				respondError(w, http.StatusForbidden, err.Error())
			case errors.Is(err, tenants.ErrTenantBlocked):
				respondError(w, http.StatusForbidden, err.Error())
			default:
				respondError(w, http.StatusInternalServerError, "tenant switch failed")
			}
			return
		}

		s.metrics.TenantSwitches.Inc()
		respondJSON(w, http.StatusOK, response{
			Tenant: tenantDTO{
				ID:          result.Tenant.ID,
				Slug:        result.Tenant.Slug,
				DisplayName: result.Tenant.DisplayName,
			},
			Role: result.Role,
		})
	}
}

func (s *Server) MyTenantsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		grants, err := s.repos.Tenants.GrantsForUser(user.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list memberships")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"tenants": grantsToDTO(grants)})
	}
}

func (s *Server) JoinTenantHandler() http.HandlerFunc {
	type request struct {
		TenantID   string `json:"tenantId"`
		TenantSlug string `json:"tenantSlug"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TenantID == "" && req.TenantSlug == "" {
			respondError(w, http.StatusBadRequest, "tenantId or tenantSlug is required")
			return
		}

		grant, err := s.auth.JoinTenant(tokenFromContext(r.Context()), req.TenantID, req.TenantSlug)
		if err != nil {
			switch {
			case errors.Is(err, auth.TenantNotFoundErr):
				respondError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, auth.AlreadyMemberErr):
				respondError(w, http.StatusConflict, err.Error())
			case errors.Is(err, auth.RegistrationClosedErr):
				respondError(w, http.StatusForbidden, err.Error())
			case errors.Is(err, auth.UnauthorizedErr):
				respondError(w, http.StatusUnauthorized, err.Error())
			default:
				respondError(w, http.StatusInternalServerError, "failed to join tenant")
			}
			return
		}

		dtos := grantsToDTO([]*tenants.Grant{grant})
		respondJSON(w, http.StatusCreated, map[string]any{"tenant": dtos[0]})
	}
}

func (s *Server) LeaveTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.auth.LeaveTenant(tokenFromContext(r.Context()), r.PathValue("tenantID"))
		if err != nil {
			switch {
			case errors.Is(err, auth.NotMemberErr):
				respondError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, auth.LastAdminErr):
				respondError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, auth.UnauthorizedErr):
				respondError(w, http.StatusUnauthorized, err.Error())
			default:
				respondError(w, http.StatusInternalServerError, "failed to leave tenant")
			}
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "membership ended"})
	}
}

func (s *Server) SystemsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		systems, err := s.repos.Tenants.ListSystems()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list systems")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"systems": systems})
	}
}

func (s *Server) SystemTenantsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		systemSlug := r.PathValue("systemSlug")
		if _, err := s.repos.Tenants.GetSystem(systemSlug); err != nil {
			respondError(w, http.StatusNotFound, "system not found")
			return
		}

		list, err := s.repos.Tenants.ListTenantsBySystem(systemSlug)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list tenants")
			return
		}

		// Only publicly joinable tenants are listed on the discovery endpoint.
		visible := make([]*tenants.Tenant, 0, len(list))
		for _, t := range list {
			if t.Active && t.AllowRegistration {
				visible = append(visible, t)
			}
		}
		respondJSON(w, http.StatusOK, map[string]any{"tenants": visible})
	}
}
