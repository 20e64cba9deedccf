package user

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	CreatePhone(ctx context.Context, phone *Phone) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIDAndToken(ctx context.Context, id uuid.UUID, token string) (*User, error)
	UpdateLastLogin(ctx context.Context, refresh SessionRefresh) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, name, email, password_hash, token, created_at, updated_at, last_login`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, token, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Token,
		user.CreatedAt,
		user.UpdatedAt,
		user.LastLogin,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to insert user: %w", err)
	}

	return nil
}

func (r *repository) CreatePhone(ctx context.Context, phone *Phone) error {
	query := `
		INSERT INTO phones (id, user_id, position, ddd, number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		phone.ID,
		phone.UserID,
		phone.Position,
		phone.DDD,
		phone.Number,
		phone.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert phone for user %s: %w", phone.UserID, err)
	}

	return nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by email: %w", err)
	}

	if err := r.loadPhones(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByIDAndToken returns ErrNotFound both for an unknown id and for a token
// that does not match the stored one.
func (r *repository) GetByIDAndToken(ctx context.Context, id uuid.UUID, token string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by id %s: %w", id, err)
	}

	if subtle.ConstantTimeCompare([]byte(user.Token), []byte(token)) != 1 {
		return nil, ErrNotFound
	}

	if err := r.loadPhones(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *repository) UpdateLastLogin(ctx context.Context, refresh SessionRefresh) error {
	query := `
		UPDATE users
		SET last_login = $1, updated_at = $1
		WHERE id = $2
	`
	cmdTag, err := r.db.Exec(ctx, query, refresh.At, refresh.UserID)
	if err != nil {
		return fmt.Errorf("repository: failed to update last login for user %s: %w", refresh.UserID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete user %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *repository) loadPhones(ctx context.Context, user *User) error {
	query := `
		SELECT id, user_id, position, ddd, number, created_at
		FROM phones
		WHERE user_id = $1
		ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, user.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to query phones for user %s: %w", user.ID, err)
	}
	defer rows.Close()

	var phones []Phone
	for rows.Next() {
		var phone Phone
		if err := rows.Scan(
			&phone.ID,
			&phone.UserID,
			&phone.Position,
			&phone.DDD,
			&phone.Number,
			&phone.CreatedAt,
		); err != nil {
			return fmt.Errorf("repository: failed to scan phone for user %s: %w", user.ID, err)
		}
		phone.CreatedAt = phone.CreatedAt.UTC()
		phones = append(phones, phone)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating phones for user %s: %w", user.ID, err)
	}

	user.Phones = phones
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var lastLogin *time.Time
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Token,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLogin,
	)
	if err != nil {
		return nil, err
	}

	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	if lastLogin != nil {
		utc := lastLogin.UTC()
		user.LastLogin = &utc
	}
	return &user, nil
}
