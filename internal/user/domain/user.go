// Package domain defines the core user domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/directory/internal/errors"
)

// Gender is the fixed enumeration for the optional gender field.
type Gender string

// Supported gender values. An empty Gender means the field was not provided.
const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Valid reports whether the gender is a member of the enumeration.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale:
		return true
	}
	return false
}

// Address is the postal address embedded in a user record. It has no lifecycle
// of its own: it is created, updated and deleted together with its owning user,
// and its identifier is never exposed outside the persistence layer.
type Address struct {
	ID            uuid.UUID
	StreetAddress string
	City          string
	State         string
	PostalCode    string
	Country       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// User represents a person record in the directory together with its embedded
// address. ID, CreatedAt and UpdatedAt are system-owned and never writable
// from client payloads.
type User struct {
	ID              uuid.UUID
	FirstName       string
	LastName        string
	Email           string
	PhoneNumber     string
	DateOfBirth     *time.Time
	Gender          Gender
	Address         Address
	ActiveStartDate time.Time
	ActiveEndDate   time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName derives the display name from the owned name parts. It is computed
// on every materialization and never stored, so it cannot drift from its
// sources. When the last name is absent the full name is just the first name,
// with no trailing separator.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Domain-specific errors for user operations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrDuplicateEmail indicates another user already uses the email
	// (case-insensitive comparison).
	ErrDuplicateEmail = errors.Wrap(errors.ErrConflict, "email already in use")

	// ErrDuplicatePhoneNumber indicates another user already uses the phone number.
	ErrDuplicatePhoneNumber = errors.Wrap(errors.ErrConflict, "phone number already in use")
)
