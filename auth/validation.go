package auth

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/users"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RegisterParams carries the registration form. Only name, email, and password
// are mandatory; the rest mirrors the profile fields the hub collects.
type RegisterParams struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Nickname string        `json:"nickname,omitempty"`
	Phone    string        `json:"phone,omitempty"`
	CPF      string        `json:"cpf,omitempty"`
	CNPJ     string        `json:"cnpj,omitempty"`
	Address  users.Address `json:"address,omitempty"`
	Timezone string        `json:"timezone,omitempty"`
}

// Validate normalizes and checks the registration input. Returned errors carry
// user-facing messages.
func (p *RegisterParams) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = users.NormalizeEmail(p.Email)
	p.Nickname = strings.TrimSpace(p.Nickname)

	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Email == "" {
		return errors.New("email is required")
	}
	if !emailRe.MatchString(p.Email) {
		return errors.New("invalid email address")
	}
	if err := users.ValidatePasswordStrength(p.Password); err != nil {
		return err
	}
	if p.CPF != "" && !onlyDigits(p.CPF, 11) {
		return errors.New("CPF must be 11 digits")
	}
	if p.CNPJ != "" && !onlyDigits(p.CNPJ, 14) {
		return errors.New("CNPJ must be 14 digits")
	}
	return nil
}

func onlyDigits(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
