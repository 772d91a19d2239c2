package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrRoleNotFound       = errors.New("role not found")
	ErrRoleExists         = errors.New("role already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrForbidden          = errors.New("access forbidden")
	ErrAccountLocked      = errors.New("too many failed login attempts")
)

// UserNotFoundError names the username that could not be resolved.
// It matches ErrUserNotFound under errors.Is.
type UserNotFoundError struct {
	Username string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("User with username %s not found", e.Username)
}

func (e *UserNotFoundError) Is(target error) bool {
	return target == ErrUserNotFound
}

// ValidationError carries one human-readable reason per failed rule.
// It matches ErrInvalidRequest under errors.Is.
type ValidationError struct {
	Reasons []string
}

func NewValidationError(reasons ...string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// StoreError is a rejected credential-store operation together with the
// reasons the store reported. Op is "add", "remove" or "create".
type StoreError struct {
	Op      string
	Reasons []string
}

func (e *StoreError) Error() string {
	reasons := strings.Join(e.Reasons, ", ")
	switch e.Op {
	case "add":
		return "Failed to add new roles: " + reasons
	case "remove":
		return "Failed to remove user roles: " + reasons
	default:
		return fmt.Sprintf("Failed to %s: %s", e.Op, reasons)
	}
}

// MissingRoleReason is the store reason used when a role name is unknown.
func MissingRoleReason(name string) string {
	return fmt.Sprintf("Role %s does not exist.", name)
}

// NotInRoleReason is the store reason used when removing a role the user
// does not hold.
func NotInRoleReason(name string) string {
	return fmt.Sprintf("User is not in role '%s'.", name)
}
