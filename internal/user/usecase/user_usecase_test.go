package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/directory/internal/errors"
	appvalidation "github.com/allisson/directory/internal/validation"

	"github.com/allisson/directory/internal/user/domain"
)

// fakeTxManager runs the function directly so the repository mocks see the
// same context the caller passed in.
type fakeTxManager struct{}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.User, error) {
	args := m.Called(ctx, phoneNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *mockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// frozenNow is the reference "today" for every temporal assertion below.
var frozenNow = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func newTestUseCase(t *testing.T) (*UserUseCase, *mockUserRepository) {
	t.Helper()
	repo := &mockUserRepository{}
	uc := NewUserUseCase(&fakeTxManager{}, repo)
	uc.now = func() time.Time { return frozenNow }
	return uc, repo
}

func validInput() UserInput {
	return UserInput{
		FirstName:   "Maria",
		LastName:    "Silva",
		Email:       "maria@example.com",
		PhoneNumber: "+5511999990000",
		DateOfBirth: "1990-03-15",
		Gender:      "FEMALE",
		Address: AddressInput{
			StreetAddress: "123 Main St",
			City:          "Sao Paulo",
			State:         "SP",
			PostalCode:    "01000-000",
			Country:       "Brazil",
		},
		ActiveStartDate: "2025-01-01",
		ActiveEndDate:   "2030-12-31",
	}
}

// fieldViolations extracts the per-field violation set from an error, failing
// the test if the error is not a field-level validation failure.
func fieldViolations(t *testing.T, err error) validation.Errors {
	t.Helper()
	require.Error(t, err)
	var fieldErrs *appvalidation.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	return fieldErrs.Fields()
}

func expectNoDuplicates(repo *mockUserRepository, input UserInput) {
	repo.On("GetByEmail", mock.Anything, input.Email).Return(nil, domain.ErrUserNotFound)
	repo.On("GetByPhoneNumber", mock.Anything, input.PhoneNumber).Return(nil, domain.ErrUserNotFound)
}

func TestUserUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		expectNoDuplicates(repo, input)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

		user, err := uc.Create(ctx, input)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.NotEqual(t, uuid.Nil, user.Address.ID)
		assert.NotEqual(t, user.ID, user.Address.ID)
		assert.Equal(t, "Maria", user.FirstName)
		assert.Equal(t, "maria@example.com", user.Email)
		assert.Equal(t, domain.GenderFemale, user.Gender)
		require.NotNil(t, user.DateOfBirth)
		assert.Equal(t, time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC), *user.DateOfBirth)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), user.ActiveStartDate)
		assert.Equal(t, time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC), user.ActiveEndDate)
		assert.Equal(t, frozenNow, user.CreatedAt)
		assert.Equal(t, frozenNow, user.UpdatedAt)
		assert.Equal(t, frozenNow, user.Address.CreatedAt)
		assert.Equal(t, "Sao Paulo", user.Address.City)
		repo.AssertExpectations(t)
	})

	t.Run("OptionalFieldsAbsent", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.LastName = ""
		input.DateOfBirth = ""
		input.Gender = ""
		expectNoDuplicates(repo, input)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

		user, err := uc.Create(ctx, input)
		require.NoError(t, err)
		assert.Empty(t, user.LastName)
		assert.Nil(t, user.DateOfBirth)
		assert.Equal(t, "Maria", user.FullName())
	})

	t.Run("AllRequiredViolationsCollected", func(t *testing.T) {
		uc, repo := newTestUseCase(t)

		_, err := uc.Create(ctx, UserInput{})
		violations := fieldViolations(t, err)

		for _, field := range []string{"first_name", "email", "phone_number", "active_start_date", "active_end_date"} {
			require.Contains(t, violations, field, "missing violation for %s", field)
			assert.Equal(t, "is required", violations[field].Error())
		}

		addressErrs, ok := violations["address"].(validation.Errors)
		require.True(t, ok, "address violations should be nested")
		for _, field := range []string{"street_address", "city", "state", "postal_code", "country"} {
			require.Contains(t, addressErrs, field)
			assert.Equal(t, "is required", addressErrs[field].Error())
		}

		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("LengthViolations", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.FirstName = strings.Repeat("a", 31)
		input.LastName = strings.Repeat("b", 31)
		input.PhoneNumber = strings.Repeat("9", 31)
		input.Address.PostalCode = strings.Repeat("0", 21)
		repo.On("GetByEmail", mock.Anything, input.Email).Return(nil, domain.ErrUserNotFound)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)

		assert.Equal(t, "exceeds maximum length", violations["first_name"].Error())
		assert.Equal(t, "exceeds maximum length", violations["last_name"].Error())
		assert.Equal(t, "exceeds maximum length", violations["phone_number"].Error())
		addressErrs := violations["address"].(validation.Errors)
		assert.Equal(t, "exceeds maximum length", addressErrs["postal_code"].Error())
	})

	t.Run("InvalidEmailFormat", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.Email = "not-an-email"
		repo.On("GetByPhoneNumber", mock.Anything, input.PhoneNumber).Return(nil, domain.ErrUserNotFound)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "must be a valid email address", violations["email"].Error())
	})

	t.Run("InvalidGender", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.Gender = "OTHER"
		expectNoDuplicates(repo, input)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "invalid value", violations["gender"].Error())
	})

	t.Run("MalformedDates", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.DateOfBirth = "15-03-1990"
		input.ActiveStartDate = "01/01/2025"
		expectNoDuplicates(repo, input)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "must be a date in YYYY-MM-DD format", violations["date_of_birth"].Error())
		assert.Equal(t, "must be a date in YYYY-MM-DD format", violations["active_start_date"].Error())
	})

	t.Run("StartDateInFuture", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.ActiveStartDate = "2025-06-16" // tomorrow relative to frozenNow
		expectNoDuplicates(repo, input)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "must be on or before today", violations["active_start_date"].Error())
	})

	t.Run("EndDateInPast", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.ActiveEndDate = "2025-06-14" // yesterday relative to frozenNow
		expectNoDuplicates(repo, input)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "must be on or after today", violations["active_end_date"].Error())
	})

	t.Run("BoundaryDatesAreValid", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.ActiveStartDate = "2025-06-15" // exactly today
		input.ActiveEndDate = "2025-06-15"   // exactly today
		expectNoDuplicates(repo, input)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

		_, err := uc.Create(ctx, input)
		require.NoError(t, err)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		existing := &domain.User{ID: uuid.New(), Email: input.Email}
		repo.On("GetByEmail", mock.Anything, input.Email).Return(existing, nil)
		repo.On("GetByPhoneNumber", mock.Anything, input.PhoneNumber).Return(nil, domain.ErrUserNotFound)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "already in use", violations["email"].Error())
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("DuplicatePhoneNumber", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		existing := &domain.User{ID: uuid.New(), PhoneNumber: input.PhoneNumber}
		repo.On("GetByEmail", mock.Anything, input.Email).Return(nil, domain.ErrUserNotFound)
		repo.On("GetByPhoneNumber", mock.Anything, input.PhoneNumber).Return(existing, nil)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "already in use", violations["phone_number"].Error())
	})

	t.Run("FormatAndUniquenessViolationsMerged", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.FirstName = ""
		existing := &domain.User{ID: uuid.New(), PhoneNumber: input.PhoneNumber}
		repo.On("GetByEmail", mock.Anything, input.Email).Return(nil, domain.ErrUserNotFound)
		repo.On("GetByPhoneNumber", mock.Anything, input.PhoneNumber).Return(existing, nil)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "is required", violations["first_name"].Error())
		assert.Equal(t, "already in use", violations["phone_number"].Error())
	})

	t.Run("UniquenessSkippedForInvalidField", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		input.Email = "not-an-email"
		repo.On("GetByPhoneNumber", mock.Anything, input.PhoneNumber).Return(nil, domain.ErrUserNotFound)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "must be a valid email address", violations["email"].Error())
		repo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("StorageRaceTranslatedToFieldError", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		expectNoDuplicates(repo, input)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(domain.ErrDuplicateEmail)

		_, err := uc.Create(ctx, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "already in use", violations["email"].Error())
	})

	t.Run("UniquenessCheckStorageFailure", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		input := validInput()
		repo.On("GetByEmail", mock.Anything, input.Email).Return(nil, errors.New("connection refused"))

		_, err := uc.Create(ctx, input)
		require.Error(t, err)
		var fieldErrs *appvalidation.FieldErrors
		assert.False(t, errors.As(err, &fieldErrs))
	})
}

func TestUserUseCase_Update(t *testing.T) {
	ctx := context.Background()

	existingUser := func() *domain.User {
		created := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
		dob := time.Date(1985, 5, 5, 0, 0, 0, 0, time.UTC)
		return &domain.User{
			ID:          uuid.New(),
			FirstName:   "Old",
			LastName:    "Name",
			Email:       "old@example.com",
			PhoneNumber: "+10000000000",
			DateOfBirth: &dob,
			Gender:      domain.GenderMale,
			Address: domain.Address{
				ID:            uuid.New(),
				StreetAddress: "Old St",
				City:          "Old City",
				State:         "OS",
				PostalCode:    "00000",
				Country:       "Oldland",
				CreatedAt:     created,
				UpdatedAt:     created,
			},
			ActiveStartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ActiveEndDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			CreatedAt:       created,
			UpdatedAt:       created,
		}
	}

	t.Run("Success", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		existing := existingUser()
		originalID := existing.ID
		originalAddressID := existing.Address.ID
		originalCreatedAt := existing.CreatedAt
		originalAddressCreatedAt := existing.Address.CreatedAt

		input := validInput()
		repo.On("GetByID", mock.Anything, originalID).Return(existing, nil)
		expectNoDuplicates(repo, input)
		repo.On("Update", mock.Anything, existing).Return(nil)

		user, err := uc.Update(ctx, originalID, input)
		require.NoError(t, err)

		assert.Equal(t, originalID, user.ID)
		assert.Equal(t, originalAddressID, user.Address.ID)
		assert.Equal(t, originalCreatedAt, user.CreatedAt)
		assert.Equal(t, originalAddressCreatedAt, user.Address.CreatedAt)
		assert.Equal(t, frozenNow, user.UpdatedAt)
		assert.Equal(t, frozenNow, user.Address.UpdatedAt)
		assert.Equal(t, "Maria", user.FirstName)
		assert.Equal(t, "maria@example.com", user.Email)
		assert.Equal(t, "123 Main St", user.Address.StreetAddress)
		repo.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrUserNotFound)

		_, err := uc.Update(ctx, id, validInput())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("NotFoundWinsOverInvalidPayload", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrUserNotFound)

		_, err := uc.Update(ctx, id, UserInput{})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		var fieldErrs *appvalidation.FieldErrors
		assert.False(t, errors.As(err, &fieldErrs))
	})

	t.Run("SelfReuseAllowed", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		existing := existingUser()
		input := validInput()
		input.Email = existing.Email
		input.PhoneNumber = existing.PhoneNumber

		repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
		repo.On("GetByEmail", mock.Anything, input.Email).Return(existing, nil)
		repo.On("GetByPhoneNumber", mock.Anything, input.PhoneNumber).Return(existing, nil)
		repo.On("Update", mock.Anything, existing).Return(nil)

		_, err := uc.Update(ctx, existing.ID, input)
		require.NoError(t, err)
	})

	t.Run("DuplicateEmailOfAnotherUser", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		existing := existingUser()
		other := &domain.User{ID: uuid.New(), Email: "taken@example.com"}
		input := validInput()
		input.Email = other.Email

		repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
		repo.On("GetByEmail", mock.Anything, input.Email).Return(other, nil)
		repo.On("GetByPhoneNumber", mock.Anything, input.PhoneNumber).Return(nil, domain.ErrUserNotFound)

		_, err := uc.Update(ctx, existing.ID, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "already in use", violations["email"].Error())
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("OptionalFieldsClearedOnMerge", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		existing := existingUser()
		input := validInput()
		input.LastName = ""
		input.DateOfBirth = ""
		input.Gender = ""

		repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
		expectNoDuplicates(repo, input)
		repo.On("Update", mock.Anything, existing).Return(nil)

		user, err := uc.Update(ctx, existing.ID, input)
		require.NoError(t, err)
		assert.Empty(t, user.LastName)
		assert.Nil(t, user.DateOfBirth)
		assert.Empty(t, string(user.Gender))
	})

	t.Run("StorageRaceTranslatedToFieldError", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		existing := existingUser()
		input := validInput()

		repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
		expectNoDuplicates(repo, input)
		repo.On("Update", mock.Anything, existing).Return(domain.ErrDuplicatePhoneNumber)

		_, err := uc.Update(ctx, existing.ID, input)
		violations := fieldViolations(t, err)
		assert.Equal(t, "already in use", violations["phone_number"].Error())
	})
}

func TestUserUseCase_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		want := &domain.User{ID: uuid.New(), FirstName: "Maria"}
		repo.On("GetByID", mock.Anything, want.ID).Return(want, nil)

		got, err := uc.Get(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("NotFound", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrUserNotFound)

		_, err := uc.Get(ctx, id)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestUserUseCase_List(t *testing.T) {
	ctx := context.Background()

	uc, repo := newTestUseCase(t)
	want := []*domain.User{{ID: uuid.New()}, {ID: uuid.New()}}
	repo.On("List", mock.Anything).Return(want, nil)

	got, err := uc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUserUseCase_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		id := uuid.New()
		repo.On("Delete", mock.Anything, id).Return(nil)

		require.NoError(t, uc.Delete(ctx, id))
		repo.AssertExpectations(t)
	})

	t.Run("AbsentIdentifierIsIdempotent", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		id := uuid.New()
		repo.On("Delete", mock.Anything, id).Return(domain.ErrUserNotFound)

		assert.NoError(t, uc.Delete(ctx, id))
	})

	t.Run("StorageFailurePropagates", func(t *testing.T) {
		uc, repo := newTestUseCase(t)
		id := uuid.New()
		repo.On("Delete", mock.Anything, id).Return(errors.New("connection refused"))

		assert.Error(t, uc.Delete(ctx, id))
	})
}
