package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// User represents a hub account. One account can hold memberships in tenants
// across several systems; those live in the tenants package.
type User struct {
	ID            string     `json:"id,omitempty"`
	Name          string     `json:"name,omitempty"`
	Nickname      string     `json:"nickname,omitempty"`
	Email         string     `json:"email,omitempty"`
	PasswordHash  string     `json:"-"` // never serialize
	Phone         string     `json:"phone,omitempty"`
	CPF           string     `json:"cpf,omitempty"`
	CNPJ          string     `json:"cnpj,omitempty"`
	Address       Address    `json:"address,omitempty"`
	Timezone      string     `json:"timezone,omitempty"`
	SuperAdmin    bool       `json:"-"` // grants access to the admin surface, never exposed raw
	Active        bool       `json:"active,omitempty"`
	Blocked       bool       `json:"blocked,omitempty"`
	BlockedReason string     `json:"blocked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// Address holds the Brazilian-format address fields collected at registration.
type Address struct {
	CEP         string `json:"cep,omitempty"`
	Logradouro  string `json:"logradouro,omitempty"`
	Numero      string `json:"numero,omitempty"`
	Bairro      string `json:"bairro,omitempty"`
	Complemento string `json:"complemento,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
}

// DisplayName prefers the nickname when set.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Name
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		}
		if unicode.IsLower(char) {
			hasLower = true
		}
		if unicode.IsNumber(char) {
			hasNumber = true
		}
	}

	if !hasUpper || !hasLower {
		return fmt.Errorf("password must contain uppercase and lowercase letters")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	return nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plaintext password against a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
