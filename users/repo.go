package users

type UsersListResponse struct {
	Users  []*User
	Total  int
	Offset int
	Limit  int
}

type UserRepo interface {
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) (UsersListResponse, error)
	SetBlocked(email string, blocked bool, reason string) error
	SetActive(email string, active bool) error
	TouchLastLogin(id string) error
}
