package auth

import "errors"

var (
	InvalidCredentialsErr = errors.New("invalid credentials")
	AccountDisabledErr    = errors.New("account disabled")
	AccountBlockedErr     = errors.New("account blocked")
	EmailTakenErr         = errors.New("email already registered")
	UnauthorizedErr       = errors.New("unauthorized")
	TenantNotFoundErr     = errors.New("tenant not found")
	NotMemberErr          = errors.New("no access to this tenant")
	AlreadyMemberErr      = errors.New("already a member of this tenant")
	RegistrationClosedErr = errors.New("tenant is not accepting registrations")
	LastAdminErr          = errors.New("cannot leave as the only administrator")
)
