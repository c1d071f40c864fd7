package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/varzeaprime/go-hub-server/tenants"
	"github.com/varzeaprime/go-hub-server/users"
)

// InitialiseSystem seeds the hub on startup: the systems registry from the
// TOML file and a super admin account if none exists yet.
// Returns the generated password via the startup log on first creation only.
func (s *Server) InitialiseSystem() error {
	if err := tenants.LoadSystemsRegistry(s.config.GetSystemsRegistryPath(), s.repos.Tenants); err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to load systems registry: %w", err)
	}

	if s.config.GetSuperAdminEmail() == "" {
		return nil
	}

	generatedPassword, err := s.createSuperAdmin(s.config.GetSuperAdminEmail())
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap super admin: %w", err)
	}

	if generatedPassword != "" {
		log.Info().
			Str("email", s.config.GetSuperAdminEmail()).
			Str("password", generatedPassword).
			Msg("super admin created, change the password on first login")
	}
	return nil
}

// createSuperAdmin creates the super admin user, or promotes the account that
// already owns the configured email.
func (s *Server) createSuperAdmin(email string) (generatedPassword string, err error) {
	existing, err := s.repos.Users.GetByEmail(email)
	if err == nil && existing != nil {
		if existing.SuperAdmin {
			return "", nil
		}
		existing.SuperAdmin = true
		if err := s.repos.Users.Upsert(existing); err != nil {
			return "", fmt.Errorf("[Server createSuperAdmin] failed to promote existing user: %w", err)
		}
		log.Info().Str("email", email).Msg("existing account promoted to super admin")
		return "", nil
	}

	passwordBytes := make([]byte, 16)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", fmt.Errorf("[Server createSuperAdmin] failed to generate password: %w", err)
	}
	generatedPassword = base64.URLEncoding.EncodeToString(passwordBytes)

	passwordHash, err := users.HashPassword(generatedPassword)
	if err != nil {
		return "", fmt.Errorf("[Server createSuperAdmin] failed to hash password: %w", err)
	}

	admin := &users.User{
		ID:           uuid.NewString(),
		Name:         "System Administrator",
		Email:        users.NormalizeEmail(email),
		PasswordHash: passwordHash,
		SuperAdmin:   true,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repos.Users.Upsert(admin); err != nil {
		return "", fmt.Errorf("[Server createSuperAdmin] failed to create super admin: %w", err)
	}
	return generatedPassword, nil
}
