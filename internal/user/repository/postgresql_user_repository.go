// Package repository provides data persistence implementations for user records.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/directory/internal/database"
	"github.com/allisson/directory/internal/user/domain"

	apperrors "github.com/allisson/directory/internal/errors"
)

// userColumns is the join projection shared by every user read query.
const userColumns = `u.id, u.first_name, u.last_name, u.email, u.phone_number,
	   u.date_of_birth, u.gender, u.active_start_date, u.active_end_date,
	   u.created_at, u.updated_at,
	   a.id, a.street_address, a.city, a.state, a.postal_code, a.country,
	   a.created_at, a.updated_at`

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser populates a user and its embedded address from a joined row.
func scanUser(scanner rowScanner) (*domain.User, error) {
	var user domain.User
	var dateOfBirth sql.NullTime
	var gender string

	err := scanner.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.PhoneNumber,
		&dateOfBirth, &gender, &user.ActiveStartDate, &user.ActiveEndDate,
		&user.CreatedAt, &user.UpdatedAt,
		&user.Address.ID, &user.Address.StreetAddress, &user.Address.City,
		&user.Address.State, &user.Address.PostalCode, &user.Address.Country,
		&user.Address.CreatedAt, &user.Address.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dateOfBirth.Valid {
		user.DateOfBirth = &dateOfBirth.Time
	}
	user.Gender = domain.Gender(gender)

	return &user, nil
}

// PostgreSQLUserRepository handles user persistence for PostgreSQL
type PostgreSQLUserRepository struct {
	db *sql.DB
}

// NewPostgreSQLUserRepository creates a new PostgreSQLUserRepository
func NewPostgreSQLUserRepository(db *sql.DB) *PostgreSQLUserRepository {
	return &PostgreSQLUserRepository{
		db: db,
	}
}

// Create inserts a new user together with its address. Both rows carry the
// timestamps stamped at materialization.
func (r *PostgreSQLUserRepository) Create(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	addressQuery := `INSERT INTO addresses (id, street_address, city, state, postal_code, country, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(ctx, addressQuery,
		user.Address.ID, user.Address.StreetAddress, user.Address.City,
		user.Address.State, user.Address.PostalCode, user.Address.Country,
		user.Address.CreatedAt, user.Address.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create address")
	}

	userQuery := `INSERT INTO users (id, first_name, last_name, email, phone_number, date_of_birth,
			  gender, address_id, active_start_date, active_end_date, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = querier.ExecContext(ctx, userQuery,
		user.ID, user.FirstName, user.LastName, user.Email, user.PhoneNumber,
		dateOfBirthValue(user), string(user.Gender), user.Address.ID,
		user.ActiveStartDate, user.ActiveEndDate, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if uniqueErr := translatePostgreSQLUniqueViolation(err); uniqueErr != nil {
			return uniqueErr
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// Update overwrites the user row and its existing address row, keeping both
// identifiers stable.
func (r *PostgreSQLUserRepository) Update(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	addressQuery := `UPDATE addresses SET street_address = $1, city = $2, state = $3,
			  postal_code = $4, country = $5, updated_at = $6 WHERE id = $7`

	_, err := querier.ExecContext(ctx, addressQuery,
		user.Address.StreetAddress, user.Address.City, user.Address.State,
		user.Address.PostalCode, user.Address.Country, user.Address.UpdatedAt,
		user.Address.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update address")
	}

	userQuery := `UPDATE users SET first_name = $1, last_name = $2, email = $3, phone_number = $4,
			  date_of_birth = $5, gender = $6, active_start_date = $7, active_end_date = $8,
			  updated_at = $9 WHERE id = $10`

	_, err = querier.ExecContext(ctx, userQuery,
		user.FirstName, user.LastName, user.Email, user.PhoneNumber,
		dateOfBirthValue(user), string(user.Gender),
		user.ActiveStartDate, user.ActiveEndDate, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if uniqueErr := translatePostgreSQLUniqueViolation(err); uniqueErr != nil {
			return uniqueErr
		}
		return apperrors.Wrap(err, "failed to update user")
	}
	return nil
}

// GetByID retrieves a user with its embedded address by ID.
func (r *PostgreSQLUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + `
			  FROM users u JOIN addresses a ON a.id = u.address_id
			  WHERE u.id = $1`

	user, err := scanUser(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user by id")
	}

	return user, nil
}

// GetByEmail retrieves a user by email using case-insensitive comparison.
func (r *PostgreSQLUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + `
			  FROM users u JOIN addresses a ON a.id = u.address_id
			  WHERE LOWER(u.email) = LOWER($1)`

	user, err := scanUser(querier.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user by email")
	}

	return user, nil
}

// GetByPhoneNumber retrieves a user by exact phone number match.
func (r *PostgreSQLUserRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + `
			  FROM users u JOIN addresses a ON a.id = u.address_id
			  WHERE u.phone_number = $1`

	user, err := scanUser(querier.QueryRowContext(ctx, query, phoneNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user by phone number")
	}

	return user, nil
}

// List retrieves all users with their embedded addresses.
func (r *PostgreSQLUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + `
			  FROM users u JOIN addresses a ON a.id = u.address_id
			  ORDER BY u.created_at`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list users")
	}
	defer func() { _ = rows.Close() }()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan user")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate users")
	}

	return users, nil
}

// Delete removes the user row and its address row. Returns ErrUserNotFound
// when the identifier does not exist so the caller can decide idempotency.
func (r *PostgreSQLUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	var addressID uuid.UUID
	err := querier.QueryRowContext(ctx, `SELECT address_id FROM users WHERE id = $1`, id).Scan(&addressID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return apperrors.Wrap(err, "failed to find user for delete")
	}

	if _, err := querier.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return apperrors.Wrap(err, "failed to delete user")
	}

	if _, err := querier.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, addressID); err != nil {
		return apperrors.Wrap(err, "failed to delete address")
	}

	return nil
}

// dateOfBirthValue maps the optional date of birth to its storage representation.
func dateOfBirthValue(user *domain.User) any {
	if user.DateOfBirth == nil {
		return nil
	}
	return *user.DateOfBirth
}

// translatePostgreSQLUniqueViolation converts a PostgreSQL unique constraint
// violation into the matching domain conflict error, or returns nil when the
// error is something else.
func translatePostgreSQLUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	errMsg := strings.ToLower(err.Error())
	// PostgreSQL: "duplicate key value violates unique constraint "users_email_unique_idx""
	if !strings.Contains(errMsg, "duplicate key") && !strings.Contains(errMsg, "unique constraint") {
		return nil
	}
	if strings.Contains(errMsg, "phone_number") {
		return domain.ErrDuplicatePhoneNumber
	}
	if strings.Contains(errMsg, "email") {
		return domain.ErrDuplicateEmail
	}
	return apperrors.Wrap(apperrors.ErrConflict, err.Error())
}
