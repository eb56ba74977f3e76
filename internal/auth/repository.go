package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/pkg/database"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already taken")
)

const userColumns = `id, email, username, password_hash, first_name, last_name, bio, birthdate, avatar_url, is_staff, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Password, &u.FirstName, &u.LastName,
		&u.Bio, &u.Birthdate, &u.AvatarURL, &u.IsStaff, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email. The domain part is matched case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email)))
}

// GetByUsername returns a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// CreateUserParams holds the signup fields.
type CreateUserParams struct {
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
}

// Create inserts a new user. Duplicate email or username map to ErrEmailTaken / ErrUsernameTaken.
func (r *Repository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	const q = `INSERT INTO users (email, username, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, NormalizeEmail(p.Email), p.Username, p.PasswordHash, p.FirstName, p.LastName))
	if err != nil {
		switch {
		case database.IsUniqueViolation(err, "users_email_key"):
			return nil, ErrEmailTaken
		case database.IsUniqueViolation(err, "users_username_key"):
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfile writes the settings form fields.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, p models.ProfileUpdate) (*models.User, error) {
	const q = `UPDATE users SET first_name = $2, last_name = $3, bio = $4, birthdate = $5, updated_at = NOW()
		WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, p.FirstName, p.LastName, p.Bio, p.Birthdate))
}

// SetAvatar stores the avatar URL and returns the previous one.
func (r *Repository) SetAvatar(ctx context.Context, id uuid.UUID, url string) (string, error) {
	const q = `UPDATE users u SET avatar_url = $2, updated_at = NOW()
		FROM (SELECT avatar_url FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = $1 RETURNING old.avatar_url`
	var prev string
	if err := r.pool.QueryRow(ctx, q, id, url).Scan(&prev); err != nil {
		if database.IsNoRows(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return prev, nil
}

// NormalizeEmail lowercases the domain part, keeping the local part as typed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + strings.ToLower(email[at:])
}
