package model

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrAuthentication       = errors.New("invalid credentials")
	ErrAuthorization        = errors.New("insufficient role")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrStillReferenced      = errors.New("cannot delete, still referenced")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrEmailTaken           = errors.New("email already exists")
	ErrPersistence          = errors.New("persistence failure")
	// ErrUnavailable marks an optional integration that is not configured.
	ErrUnavailable = errors.New("not configured")
)

var domainErrors = []error{
	ErrAuthentication,
	ErrAuthorization,
	ErrInsufficientCapacity,
	ErrInsufficientStock,
	ErrStillReferenced,
	ErrNotFound,
	ErrInvalidInput,
	ErrInvalidTransition,
	ErrEmailTaken,
	ErrPersistence,
	ErrUnavailable,
}

// IsDomain reports whether err already carries one of the sentinels above.
func IsDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Wrap maps a storage error onto the domain sentinels, keeping the cause.
func Wrap(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w", what, ErrStillReferenced)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: already exists", what, ErrInvalidInput)
	case IsDomain(err):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", what, ErrPersistence, err)
	}
}

// Invalid builds an ErrInvalidInput with a readable reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
