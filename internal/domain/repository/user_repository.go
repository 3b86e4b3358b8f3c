package repository

import (
	"errors"

	"github.com/ramadhanik/go-auth-service/internal/domain/entity"
)

var (
	// ErrNotFound is returned when a user row does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when an insert violates the unique email constraint.
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(u *entity.User) error
	GetByID(id string) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	Update(u *entity.User) error
	UpdatePassword(id, hash string) error
	SetVerified(id string) error
	IsVerified(id string) (bool, error)
}
