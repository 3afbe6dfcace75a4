package user

import (
	"context"
	"strings"

	"staykeeper/internal/domain/shared/errs"
)

var (
	ErrNotFound    = errs.NotFound("user: not found")
	ErrInvalidType = errs.Validation("user: invalid user type")
)

type ID string

// Type is the account kind reported by the identity service.
type Type string

const (
	TypeGuest Type = "guest"
	TypeHost  Type = "host"
	TypeBoth  Type = "both"
)

func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case TypeGuest, TypeHost, TypeBoth:
		return t, nil
	}
	return "", ErrInvalidType
}

// CanHost reports whether the account may act as a host.
func (t Type) CanHost() bool {
	return t == TypeHost || t == TypeBoth
}

// CanBook reports whether the account may place bookings.
func (t Type) CanBook() bool {
	return t == TypeGuest || t == TypeBoth
}

type User struct {
	ID    ID
	Name  string
	Email string
	Type  Type
}

// Directory answers the single question the engine asks about accounts.
type Directory interface {
	UserType(ctx context.Context, id ID) (Type, error)
}

// Repository is implemented by stores that keep a local copy of accounts.
type Repository interface {
	Directory
	Save(ctx context.Context, u *User) error
}
