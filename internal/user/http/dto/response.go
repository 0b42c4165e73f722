// Package dto holds the wire representations for the user HTTP API.
package dto

import (
	"time"

	"github.com/allisson/directory/internal/user/domain"
)

const dateLayout = "2006-01-02"

// AddressResponse is the wire representation of an embedded address. The
// address identifier and timestamps are implementation details and stay out
// of the payload.
type AddressResponse struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

// UserResponse is the wire representation of a user record. FullName is
// derived from the name parts, never stored.
type UserResponse struct {
	ID              string          `json:"id"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name,omitempty"`
	FullName        string          `json:"full_name"`
	Email           string          `json:"email"`
	PhoneNumber     string          `json:"phone_number"`
	DateOfBirth     string          `json:"date_of_birth,omitempty"`
	Gender          string          `json:"gender,omitempty"`
	Address         AddressResponse `json:"address"`
	ActiveStartDate string          `json:"active_start_date"`
	ActiveEndDate   string          `json:"active_end_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FromUser converts a domain user to its wire representation.
func FromUser(user *domain.User) UserResponse {
	response := UserResponse{
		ID:          user.ID.String(),
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		FullName:    user.FullName(),
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		Gender:      string(user.Gender),
		Address: AddressResponse{
			StreetAddress: user.Address.StreetAddress,
			City:          user.Address.City,
			State:         user.Address.State,
			PostalCode:    user.Address.PostalCode,
			Country:       user.Address.Country,
		},
		ActiveStartDate: user.ActiveStartDate.Format(dateLayout),
		ActiveEndDate:   user.ActiveEndDate.Format(dateLayout),
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
	if user.DateOfBirth != nil {
		response.DateOfBirth = user.DateOfBirth.Format(dateLayout)
	}
	return response
}

// FromUsers converts a list of domain users to wire representations. The
// result is never nil so an empty directory serializes as an empty array.
func FromUsers(users []*domain.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, FromUser(user))
	}
	return responses
}
