package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Authenticate for unknown users and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid username or password")

type userService struct {
	pool *pgxpool.Pool
}

// NewUserService constructs a UserService backed by PostgreSQL.
func NewUserService(pool *pgxpool.Pool) UserService {
	return &userService{pool: pool}
}

const userColumns = `id, company_id, username, email, phone, password_hash, role, permissions, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }, u *User) error {
	return row.Scan(&u.ID, &u.CompanyID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash,
		&u.Role, &u.Permissions, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func comparePassword(hashed, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
}

func (s *userService) CreateUser(ctx context.Context, companyID int, input UserInput) (*User, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	perms := input.Permissions
	if perms == nil {
		perms = []string{}
	}

	u := &User{}
	err = scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (company_id, username, email, phone, password_hash, role, permissions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		companyID, input.Username, input.Email, toPtr(input.Phone), hash, input.Role, perms,
	), u)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictf("username %q is already taken", input.Username)
		}
		return nil, fmt.Errorf("create user %q: %w", input.Username, err)
	}
	return u, nil
}

func (s *userService) GetUsers(ctx context.Context, companyID int) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE company_id = $1
		ORDER BY is_active DESC, username`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 AND is_active = true`,
		username,
	), u)
	if err != nil {
		return nil, notFoundOr(err, "user %q", username)
	}
	return u, nil
}

func (s *userService) GetByID(ctx context.Context, userID int) (*User, error) {
	u := &User{}
	err := scanUser(s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID), u)
	if err != nil {
		return nil, notFoundOr(err, "user id=%d", userID)
	}
	return u, nil
}

func (s *userService) UpdateUser(ctx context.Context, companyID, userID int, input UserUpdate) (*User, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	perms := input.Permissions
	if perms == nil {
		perms = []string{}
	}

	u := &User{}
	err := scanUser(s.pool.QueryRow(ctx, `
		UPDATE users
		SET email = $3, phone = $4, role = $5, permissions = $6, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING `+userColumns,
		userID, companyID, input.Email, toPtr(input.Phone), input.Role, perms,
	), u)
	if err != nil {
		return nil, notFoundOr(err, "user id=%d", userID)
	}
	return u, nil
}

func (s *userService) DeactivateUser(ctx context.Context, companyID, userID int) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET is_active = false, updated_at = NOW() WHERE id = $1 AND company_id = $2",
		userID, companyID,
	)
	if err != nil {
		return fmt.Errorf("deactivate user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user id=%d: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *userService) ChangePassword(ctx context.Context, userID int, currentPassword, newPassword string) error {
	if len(newPassword) < 8 || len(newPassword) > 72 {
		return &ValidationError{Message: "invalid input", Fields: map[string]string{"newPassword": "min=8,max=72"}}
	}
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := comparePassword(u.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		"UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1", userID, hash,
	); err != nil {
		return fmt.Errorf("change password for user %d: %w", userID, err)
	}
	return nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := comparePassword(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
