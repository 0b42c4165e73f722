// Package usecase implements the user business logic: payload validation,
// uniqueness checking and merge of payloads into persisted records.
package usecase

import (
	"context"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	"github.com/allisson/directory/internal/database"
	apperrors "github.com/allisson/directory/internal/errors"
	"github.com/allisson/directory/internal/user/domain"
	appvalidation "github.com/allisson/directory/internal/validation"
)

// dateLayout is the wire format for date-only fields.
const dateLayout = "2006-01-02"

// Maximum lengths for free-text fields, mirroring the storage column definitions.
const (
	maxFirstNameLength     = 30
	maxLastNameLength      = 30
	maxEmailLength         = 50
	maxPhoneNumberLength   = 30
	maxStreetAddressLength = 255
	maxCityLength          = 100
	maxStateLength         = 100
	maxPostalCodeLength    = 20
	maxCountryLength       = 100
)

// AddressInput contains the address sub-fields of a user payload.
type AddressInput struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

// Validate checks that every address sub-field is present and within bounds.
func (a AddressInput) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.StreetAddress,
			validation.Required.Error("is required"),
			validation.Length(0, maxStreetAddressLength).Error("exceeds maximum length"),
		),
		validation.Field(&a.City,
			validation.Required.Error("is required"),
			validation.Length(0, maxCityLength).Error("exceeds maximum length"),
		),
		validation.Field(&a.State,
			validation.Required.Error("is required"),
			validation.Length(0, maxStateLength).Error("exceeds maximum length"),
		),
		validation.Field(&a.PostalCode,
			validation.Required.Error("is required"),
			validation.Length(0, maxPostalCodeLength).Error("exceeds maximum length"),
		),
		validation.Field(&a.Country,
			validation.Required.Error("is required"),
			validation.Length(0, maxCountryLength).Error("exceeds maximum length"),
		),
	)
}

// UserInput contains the client-supplied candidate for create and update
// operations. Date fields use the YYYY-MM-DD wire format and are parsed only
// after validation. System-owned fields (id, timestamps) are absent on purpose.
type UserInput struct {
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	Email           string       `json:"email"`
	PhoneNumber     string       `json:"phone_number"`
	DateOfBirth     string       `json:"date_of_birth"`
	Gender          string       `json:"gender"`
	Address         AddressInput `json:"address"`
	ActiveStartDate string       `json:"active_start_date"`
	ActiveEndDate   string       `json:"active_end_date"`
}

// UseCase defines the interface for user business logic operations
type UseCase interface {
	List(ctx context.Context) ([]*domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Create(ctx context.Context, input UserInput) (*domain.User, error)
	Update(ctx context.Context, id uuid.UUID, input UserInput) (*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepository interface defines user repository operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserUseCase handles user-related business logic
type UserUseCase struct {
	txManager database.TxManager
	userRepo  UserRepository
	now       func() time.Time
}

// NewUserUseCase creates a new UserUseCase
func NewUserUseCase(txManager database.TxManager, userRepo UserRepository) *UserUseCase {
	return &UserUseCase{
		txManager: txManager,
		userRepo:  userRepo,
		now:       time.Now,
	}
}

// validateUserInput evaluates every rule independently and collects the full
// violation set, so a client sees all problems in one response. The temporal
// rules allow equality: a record becoming active or retiring exactly today is
// valid.
func (uc *UserUseCase) validateUserInput(input UserInput) validation.Errors {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.FirstName,
			validation.Required.Error("is required"),
			validation.Length(0, maxFirstNameLength).Error("exceeds maximum length"),
		),
		validation.Field(&input.LastName,
			validation.Length(0, maxLastNameLength).Error("exceeds maximum length"),
		),
		validation.Field(&input.Email,
			validation.Required.Error("is required"),
			appvalidation.Email,
			validation.Length(0, maxEmailLength).Error("exceeds maximum length"),
		),
		validation.Field(&input.PhoneNumber,
			validation.Required.Error("is required"),
			validation.Length(0, maxPhoneNumberLength).Error("exceeds maximum length"),
		),
		validation.Field(&input.DateOfBirth,
			validation.Date(dateLayout).Error("must be a date in YYYY-MM-DD format"),
		),
		validation.Field(&input.Gender,
			validation.In(
				string(domain.GenderMale),
				string(domain.GenderFemale),
			).Error("invalid value"),
		),
		validation.Field(&input.Address),
		validation.Field(&input.ActiveStartDate,
			validation.Required.Error("is required"),
			validation.Date(dateLayout).Error("must be a date in YYYY-MM-DD format"),
		),
		validation.Field(&input.ActiveEndDate,
			validation.Required.Error("is required"),
			validation.Date(dateLayout).Error("must be a date in YYYY-MM-DD format"),
		),
	)

	errs := validation.Errors{}
	if err != nil {
		if fieldErrs, ok := err.(validation.Errors); ok {
			errs = fieldErrs
		} else {
			errs["input"] = err
		}
	}

	today := truncateToDay(uc.now().UTC())

	// Temporal window rules run only on fields that parsed cleanly.
	if _, seen := errs["active_start_date"]; !seen && input.ActiveStartDate != "" {
		if start, parseErr := time.Parse(dateLayout, input.ActiveStartDate); parseErr == nil {
			if start.After(today) {
				errs["active_start_date"] = validation.NewError(
					"validation_active_start_date",
					"must be on or before today",
				)
			}
		}
	}

	if _, seen := errs["active_end_date"]; !seen && input.ActiveEndDate != "" {
		if end, parseErr := time.Parse(dateLayout, input.ActiveEndDate); parseErr == nil {
			if end.Before(today) {
				errs["active_end_date"] = validation.NewError(
					"validation_active_end_date",
					"must be on or after today",
				)
			}
		}
	}

	return errs
}

// checkUniqueness folds duplicate email/phone conflicts into the running
// violation set, excluding the record identified by selfID (uuid.Nil on
// create). Fields that already carry a violation are skipped. Storage failures
// abort the check; an absent record is the happy path.
func (uc *UserUseCase) checkUniqueness(
	ctx context.Context,
	input UserInput,
	selfID uuid.UUID,
	errs validation.Errors,
) (validation.Errors, error) {
	if _, seen := errs["email"]; !seen && input.Email != "" {
		existing, err := uc.userRepo.GetByEmail(ctx, input.Email)
		if err != nil && !apperrors.Is(err, domain.ErrUserNotFound) {
			return nil, apperrors.Wrap(err, "failed to check email uniqueness")
		}
		if existing != nil && existing.ID != selfID {
			errs["email"] = validation.NewError("validation_duplicate_email", "already in use")
		}
	}

	if _, seen := errs["phone_number"]; !seen && input.PhoneNumber != "" {
		existing, err := uc.userRepo.GetByPhoneNumber(ctx, input.PhoneNumber)
		if err != nil && !apperrors.Is(err, domain.ErrUserNotFound) {
			return nil, apperrors.Wrap(err, "failed to check phone number uniqueness")
		}
		if existing != nil && existing.ID != selfID {
			errs["phone_number"] = validation.NewError("validation_duplicate_phone_number", "already in use")
		}
	}

	return errs, nil
}

// Create validates the payload, checks uniqueness and persists a new user with
// its address in a single transaction. Identifiers and timestamps are assigned
// here, never taken from the payload.
func (uc *UserUseCase) Create(ctx context.Context, input UserInput) (*domain.User, error) {
	errs := uc.validateUserInput(input)

	var user *domain.User
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		errs, txErr = uc.checkUniqueness(ctx, input, uuid.Nil, errs)
		if txErr != nil {
			return txErr
		}
		if fieldErr := appvalidation.WrapFieldErrors(errs); fieldErr != nil {
			return fieldErr
		}

		user = uc.materialize(input, uc.now().UTC())
		if txErr := uc.userRepo.Create(ctx, user); txErr != nil {
			return translateUniqueConflict(txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Update loads the existing record, validates the payload and overwrites every
// payload-carried field onto it, preserving system-owned fields. The whole
// read-check-write sequence runs in one transaction.
func (uc *UserUseCase) Update(ctx context.Context, id uuid.UUID, input UserInput) (*domain.User, error) {
	errs := uc.validateUserInput(input)

	var user *domain.User
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, txErr := uc.userRepo.GetByID(ctx, id)
		if txErr != nil {
			return txErr
		}

		errs, txErr = uc.checkUniqueness(ctx, input, existing.ID, errs)
		if txErr != nil {
			return txErr
		}
		if fieldErr := appvalidation.WrapFieldErrors(errs); fieldErr != nil {
			return fieldErr
		}

		merge(existing, input, uc.now().UTC())
		if txErr := uc.userRepo.Update(ctx, existing); txErr != nil {
			return translateUniqueConflict(txErr)
		}
		user = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Get retrieves a user by ID
func (uc *UserUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return uc.userRepo.GetByID(ctx, id)
}

// List retrieves all users with their embedded addresses
func (uc *UserUseCase) List(ctx context.Context) ([]*domain.User, error) {
	return uc.userRepo.List(ctx)
}

// Delete removes the user and its embedded address in one transaction.
// Deleting an absent identifier is not an error: the operation is idempotent
// from the caller's perspective.
func (uc *UserUseCase) Delete(ctx context.Context, id uuid.UUID) error {
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		return uc.userRepo.Delete(ctx, id)
	})
	if apperrors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	return err
}

// materialize builds a new record from a validated payload, assigning fresh
// identifiers and stamping both user and address timestamps.
func (uc *UserUseCase) materialize(input UserInput, now time.Time) *domain.User {
	return &domain.User{
		ID:          uuid.Must(uuid.NewV7()),
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		DateOfBirth: parseOptionalDate(input.DateOfBirth),
		Gender:      domain.Gender(input.Gender),
		Address: domain.Address{
			ID:            uuid.Must(uuid.NewV7()),
			StreetAddress: input.Address.StreetAddress,
			City:          input.Address.City,
			State:         input.Address.State,
			PostalCode:    input.Address.PostalCode,
			Country:       input.Address.Country,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		ActiveStartDate: parseDate(input.ActiveStartDate),
		ActiveEndDate:   parseDate(input.ActiveEndDate),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// merge overwrites every payload-carried field onto the existing record. The
// user identifier, the address identifier and both creation timestamps are
// system-owned and never touched; both update timestamps are refreshed.
func merge(existing *domain.User, input UserInput, now time.Time) {
	existing.FirstName = input.FirstName
	existing.LastName = input.LastName
	existing.Email = input.Email
	existing.PhoneNumber = input.PhoneNumber
	existing.DateOfBirth = parseOptionalDate(input.DateOfBirth)
	existing.Gender = domain.Gender(input.Gender)
	existing.Address.StreetAddress = input.Address.StreetAddress
	existing.Address.City = input.Address.City
	existing.Address.State = input.Address.State
	existing.Address.PostalCode = input.Address.PostalCode
	existing.Address.Country = input.Address.Country
	existing.Address.UpdatedAt = now
	existing.ActiveStartDate = parseDate(input.ActiveStartDate)
	existing.ActiveEndDate = parseDate(input.ActiveEndDate)
	existing.UpdatedAt = now
}

// translateUniqueConflict converts a storage-level unique violation (a race
// with a concurrent writer that passed the inline check) into the same
// field-level violation shape the uniqueness checker produces.
func translateUniqueConflict(err error) error {
	fields := validation.Errors{}
	if apperrors.Is(err, domain.ErrDuplicateEmail) {
		fields["email"] = validation.NewError("validation_duplicate_email", "already in use")
	}
	if apperrors.Is(err, domain.ErrDuplicatePhoneNumber) {
		fields["phone_number"] = validation.NewError("validation_duplicate_phone_number", "already in use")
	}
	if fieldErr := appvalidation.WrapFieldErrors(fields); fieldErr != nil {
		return fieldErr
	}
	return err
}

// parseDate parses a date-only field whose layout validation already verified.
func parseDate(value string) time.Time {
	parsed, _ := time.Parse(dateLayout, value)
	return parsed
}

// parseOptionalDate returns nil for an absent optional date field.
func parseOptionalDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed := parseDate(value)
	return &parsed
}

// truncateToDay drops the time-of-day component for date-only comparisons.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
