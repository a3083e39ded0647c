package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plinth-dev/plinth/internal/backend"
	"github.com/plinth-dev/plinth/internal/domain"
)

// UserService manages user accounts on a relational backend. Accounts are
// provisioned from identity-provider claims: the ID is the token subject,
// never locally generated.
type UserService struct {
	h backend.Handler
}

// NewUserService creates a UserService on the given handler.
func NewUserService(h backend.Handler) *UserService {
	return &UserService{h: h}
}

// Create provisions a user account. An empty username defaults to the
// local part of the email address.
func (s *UserService) Create(ctx context.Context, id, email, username, firstName, lastName string) (*domain.User, error) {
	if id == "" || email == "" {
		return nil, fmt.Errorf("%w: id and email are required", domain.ErrInvalidInput)
	}
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}

	if err := s.checkNewUser(ctx, id, email); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:        id,
		Email:     email,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.h.ExecuteQuery(ctx,
		`INSERT INTO users (id, email, username, first_name, last_name, is_active, created_at, updated_at)
		 VALUES (:id, :email, :username, :first_name, :last_name, :is_active, :created_at, :updated_at)`,
		map[string]any{
			"id":         user.ID,
			"email":      user.Email,
			"username":   user.Username,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"is_active":  user.IsActive,
			"created_at": user.CreatedAt,
			"updated_at": user.UpdatedAt,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *UserService) checkNewUser(ctx context.Context, id, email string) error {
	rows, err := s.h.ExecuteQuery(ctx,
		`SELECT id FROM users WHERE id = :id`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("check user id: %w", err)
	}
	if len(rows) > 0 {
		return fmt.Errorf("%w: user with ID %s already exists", domain.ErrDuplicateID, id)
	}

	rows, err = s.h.ExecuteQuery(ctx,
		`SELECT id FROM users WHERE email = :email`, map[string]any{"email": email})
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if len(rows) > 0 {
		return fmt.Errorf("%w: email %s already registered", domain.ErrDuplicateEmail, email)
	}
	return nil
}

// Get returns the user with the given ID.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	rows, err := s.h.ExecuteQuery(ctx,
		`SELECT id, email, username, first_name, last_name, is_active, created_at, updated_at
		 FROM users WHERE id = :id`,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return rowToUser(rows[0]), nil
}

// Update changes the provided fields of a user. Nil means unchanged; at
// least one field must be set. Email and username moves are checked for
// conflicts with other accounts.
func (s *UserService) Update(ctx context.Context, id string, email, username, firstName, lastName *string) (*domain.User, error) {
	if email == nil && username == nil && firstName == nil && lastName == nil {
		return nil, fmt.Errorf("%w: at least one field must be provided", domain.ErrInvalidInput)
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if email != nil && *email != user.Email {
		if err := s.checkFieldFree(ctx, "email", *email, id); err != nil {
			return nil, err
		}
		user.Email = *email
	}
	if username != nil && *username != user.Username {
		if *username == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", domain.ErrInvalidInput)
		}
		if err := s.checkFieldFree(ctx, "username", *username, id); err != nil {
			return nil, err
		}
		user.Username = *username
	}
	if firstName != nil {
		user.FirstName = *firstName
	}
	if lastName != nil {
		user.LastName = *lastName
	}
	user.UpdatedAt = time.Now().UTC()

	_, err = s.h.ExecuteQuery(ctx,
		`UPDATE users SET email = :email, username = :username, first_name = :first_name,
		 last_name = :last_name, updated_at = :updated_at WHERE id = :id`,
		map[string]any{
			"id":         user.ID,
			"email":      user.Email,
			"username":   user.Username,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"updated_at": user.UpdatedAt,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// UpdateUsername changes only the username.
func (s *UserService) UpdateUsername(ctx context.Context, id, username string) (*domain.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	return s.Update(ctx, id, nil, &username, nil, nil)
}

// checkFieldFree reports an error when another account already holds the
// given column value.
func (s *UserService) checkFieldFree(ctx context.Context, column, value, selfID string) error {
	// Column names come from the fixed call sites above, never from input.
	query := fmt.Sprintf(`SELECT id FROM users WHERE %s = :value AND id <> :self`, column)
	rows, err := s.h.ExecuteQuery(ctx, query, map[string]any{"value": value, "self": selfID})
	if err != nil {
		return fmt.Errorf("check %s: %w", column, err)
	}
	if len(rows) > 0 {
		if column == "email" {
			return fmt.Errorf("%w: email %s already registered", domain.ErrDuplicateEmail, value)
		}
		return fmt.Errorf("%w: %s %q already in use", domain.ErrInvalidInput, column, value)
	}
	return nil
}

func rowToUser(row map[string]any) *domain.User {
	return &domain.User{
		ID:        toString(row["id"]),
		Email:     toString(row["email"]),
		Username:  toString(row["username"]),
		FirstName: toString(row["first_name"]),
		LastName:  toString(row["last_name"]),
		IsActive:  toBool(row["is_active"]),
		CreatedAt: toTime(row["created_at"]),
		UpdatedAt: toTime(row["updated_at"]),
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	case string:
		return b == "1" || strings.EqualFold(b, "true")
	case []byte:
		return toBool(string(b))
	}
	return false
}
