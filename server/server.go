package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/varzeaprime/go-hub-server/adminauth"
	"github.com/varzeaprime/go-hub-server/audit"
	"github.com/varzeaprime/go-hub-server/auth"
	"github.com/varzeaprime/go-hub-server/internal/config"
	"github.com/varzeaprime/go-hub-server/internal/metrics"
	"github.com/varzeaprime/go-hub-server/provision"
	"github.com/varzeaprime/go-hub-server/token"
)

// Server is the hub's HTTP surface: hub auth, tenant discovery, the admin
// exchange endpoints, and the super-admin panel API.
type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config

	repos       auth.Repos
	auth        *auth.Service
	admin       *adminauth.Service
	provisioner *provision.Provisioner
	recorder    *audit.Recorder
	metrics     *metrics.Metrics
}

func New(cfg config.Config, repos auth.Repos, adminRepo adminauth.Repo, provisioner *provision.Provisioner, recorder *audit.Recorder) (*Server, error) {
	tokens := token.New(
		cfg.GetTokenSigningSecret(),
		cfg.GetBaseURL(),
		token.WithTokenExpiry(cfg.GetHubTokenExpiry(), cfg.GetAdminTokenExpiry()),
	)

	authService, err := auth.NewService(repos, tokens, recorder)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create hub auth service: %w", err)
	}

	adminService, err := adminauth.NewService(repos.Users, repos.Sessions, adminRepo, tokens, recorder)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create admin auth service: %w", err)
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      cfg,
		repos:       repos,
		auth:        authService,
		admin:       adminService,
		provisioner: provisioner,
		recorder:    recorder,
		metrics:     metrics.New(),
	}
	s.env = cfg.GetEnv()

	if err := s.InitialiseSystem(); err != nil {
		return nil, fmt.Errorf("[Server New] failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
