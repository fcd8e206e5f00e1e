// Package user registers and authenticates accounts.
package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Service manages user accounts.
type Service struct {
	db   *gorm.DB
	cost int
}

// NewService returns a Service backed by db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, cost: bcrypt.DefaultCost}
}

// WithCost returns a copy of s hashing with the given bcrypt cost. Tests use
// bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	c := *s
	c.cost = cost
	return &c
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. Emails are unique case-insensitively.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)

	var problems []string
	if name == "" {
		problems = append(problems, "name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		problems = append(problems, fmt.Sprintf("email %q is invalid", email))
	}
	if len(password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("user: register: %w: %s", apperr.ErrValidation, strings.Join(problems, "; "))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("user: hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: email %s is already registered", apperr.ErrValidation, email)
		}
		return tx.Create(u).Error
	})
	if db.IsDuplicateKey(err) {
		// Lost a race with a concurrent registration of the same email.
		return nil, fmt.Errorf("user: register: %w: email %s is already registered", apperr.ErrValidation, email)
	}
	if err != nil {
		return nil, fmt.Errorf("user: register %s: %w", email, apperr.Transaction(err))
	}
	return u, nil
}

// Authenticate returns the user with the given credentials. Unknown emails
// and wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user: login: %w: invalid email or password", apperr.ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("user: login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("user: login: %w: invalid email or password", apperr.ErrUnauthenticated)
	}
	return &u, nil
}

// Get returns the user with the given ID.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user: %w: %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("user: get %s: %w", id, err)
	}
	return &u, nil
}

// FindByEmail returns the user registered under email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = NormalizeEmail(email)
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user: %w: no user with email %s", apperr.ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("user: find %s: %w", email, err)
	}
	return &u, nil
}
