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

// MySQLUserRepository handles user persistence for MySQL
type MySQLUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new MySQLUserRepository
func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{
		db: db,
	}
}

// Create inserts a new user together with its address.
func (r *MySQLUserRepository) Create(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	addressQuery := `INSERT INTO addresses (id, street_address, city, state, postal_code, country, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, addressQuery,
		user.Address.ID.String(), user.Address.StreetAddress, user.Address.City,
		user.Address.State, user.Address.PostalCode, user.Address.Country,
		user.Address.CreatedAt, user.Address.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create address")
	}

	userQuery := `INSERT INTO users (id, first_name, last_name, email, phone_number, date_of_birth,
			  gender, address_id, active_start_date, active_end_date, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, userQuery,
		user.ID.String(), user.FirstName, user.LastName, user.Email, user.PhoneNumber,
		dateOfBirthValue(user), string(user.Gender), user.Address.ID.String(),
		user.ActiveStartDate, user.ActiveEndDate, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if uniqueErr := translateMySQLUniqueViolation(err); uniqueErr != nil {
			return uniqueErr
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// Update overwrites the user row and its existing address row.
func (r *MySQLUserRepository) Update(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	addressQuery := `UPDATE addresses SET street_address = ?, city = ?, state = ?,
			  postal_code = ?, country = ?, updated_at = ? WHERE id = ?`

	_, err := querier.ExecContext(ctx, addressQuery,
		user.Address.StreetAddress, user.Address.City, user.Address.State,
		user.Address.PostalCode, user.Address.Country, user.Address.UpdatedAt,
		user.Address.ID.String(),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update address")
	}

	userQuery := `UPDATE users SET first_name = ?, last_name = ?, email = ?, phone_number = ?,
			  date_of_birth = ?, gender = ?, active_start_date = ?, active_end_date = ?,
			  updated_at = ? WHERE id = ?`

	_, err = querier.ExecContext(ctx, userQuery,
		user.FirstName, user.LastName, user.Email, user.PhoneNumber,
		dateOfBirthValue(user), string(user.Gender),
		user.ActiveStartDate, user.ActiveEndDate, user.UpdatedAt, user.ID.String(),
	)
	if err != nil {
		if uniqueErr := translateMySQLUniqueViolation(err); uniqueErr != nil {
			return uniqueErr
		}
		return apperrors.Wrap(err, "failed to update user")
	}
	return nil
}

// GetByID retrieves a user with its embedded address by ID.
func (r *MySQLUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + `
			  FROM users u JOIN addresses a ON a.id = u.address_id
			  WHERE u.id = ?`

	user, err := scanUser(querier.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user by id")
	}

	return user, nil
}

// GetByEmail retrieves a user by email using case-insensitive comparison.
func (r *MySQLUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + `
			  FROM users u JOIN addresses a ON a.id = u.address_id
			  WHERE LOWER(u.email) = LOWER(?)`

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
func (r *MySQLUserRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + `
			  FROM users u JOIN addresses a ON a.id = u.address_id
			  WHERE u.phone_number = ?`

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
func (r *MySQLUserRepository) List(ctx context.Context) ([]*domain.User, error) {
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

// Delete removes the user row and its address row.
func (r *MySQLUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	var addressID uuid.UUID
	err := querier.QueryRowContext(ctx, `SELECT address_id FROM users WHERE id = ?`, id.String()).Scan(&addressID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return apperrors.Wrap(err, "failed to find user for delete")
	}

	if _, err := querier.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String()); err != nil {
		return apperrors.Wrap(err, "failed to delete user")
	}

	if _, err := querier.ExecContext(ctx, `DELETE FROM addresses WHERE id = ?`, addressID.String()); err != nil {
		return apperrors.Wrap(err, "failed to delete address")
	}

	return nil
}

// translateMySQLUniqueViolation converts a MySQL duplicate entry error into
// the matching domain conflict error, or returns nil when the error is
// something else.
func translateMySQLUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	errMsg := strings.ToLower(err.Error())
	// MySQL: "Error 1062: Duplicate entry 'x' for key 'users.users_email_unique_idx'"
	if !strings.Contains(errMsg, "duplicate entry") && !strings.Contains(errMsg, "error 1062") {
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
