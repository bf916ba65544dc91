// Package auth checks shopper and administrator credentials against the
// stored user list. Passwords are kept as bcrypt hashes; a user record
// still carrying a plaintext password is upgraded on its first login.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/collections"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("phone number already registered")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidPhone       = errors.New("phone number must have at least 11 digits")
	ErrNameRequired       = errors.New("name required")
	ErrUnknownUser        = errors.New("no account with this phone number")
)

const (
	MinPasswordLen = 6
	MinPhoneLen    = 11
)

// AdminID is the id of the administrator configured outside the user list.
const AdminID = "admin"

// Service owns the "users" collection.
type Service struct {
	cols *collections.Collections
	cfg  config.AuthConfig
	cost int

	mu sync.Mutex
}

func New(cols *collections.Collections, cfg config.AuthConfig) *Service {
	return &Service{cols: cols, cfg: cfg, cost: bcrypt.DefaultCost}
}

// HashPassword returns the bcrypt hash stored for password.
func HashPassword(password string) (string, error) {
	return hashWithCost(password, bcrypt.DefaultCost)
}

func hashWithCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= MinPhoneLen
}

// Register creates a regular account and returns its public record.
func (s *Service) Register(name, phone, password string) (domain.User, error) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	switch {
	case name == "":
		return domain.User{}, ErrNameRequired
	case !validPhone(phone):
		return domain.User{}, ErrInvalidPhone
	case len(strings.TrimSpace(password)) < MinPasswordLen:
		return domain.User{}, ErrWeakPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.cols.Users()
	if s.isAdminPhone(phone) || indexByPhone(users, phone) >= 0 {
		return domain.User{}, ErrUserExists
	}
	hash, err := hashWithCost(password, s.cost)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{ID: "u-" + uuid.NewString(), Name: name, Phone: phone, PasswordHash: hash}
	if err := s.cols.SaveUsers(append(users, u)); err != nil {
		return domain.User{}, err
	}
	logging.Get(logging.CategoryAuth).Infow("user registered", "id", u.ID)
	return u.Public(), nil
}

// Authenticate checks phone and password. Unknown phones and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(phone, password string) (domain.User, error) {
	phone = strings.TrimSpace(phone)
	log := logging.Get(logging.CategoryAuth)

	if s.isAdminPhone(phone) {
		if bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)) != nil {
			log.Warnw("admin login rejected")
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{ID: AdminID, Name: "Administrator", Phone: phone, IsAdmin: true}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.cols.Users()
	idx := indexByPhone(users, phone)
	if idx < 0 {
		return domain.User{}, ErrInvalidCredentials
	}
	u := users[idx]

	switch {
	case u.PasswordHash != "":
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			return domain.User{}, ErrInvalidCredentials
		}
	case u.Password != "" && u.Password == password:
		hash, err := hashWithCost(password, s.cost)
		if err != nil {
			return domain.User{}, err
		}
		users[idx].PasswordHash = hash
		users[idx].Password = ""
		if err := s.cols.SaveUsers(users); err != nil {
			return domain.User{}, err
		}
		log.Infow("legacy password upgraded", "id", u.ID)
	default:
		return domain.User{}, ErrInvalidCredentials
	}
	return u.Public(), nil
}

// ResetPassword replaces the password of the account registered to phone.
func (s *Service) ResetPassword(phone, password string) error {
	phone = strings.TrimSpace(phone)
	if len(strings.TrimSpace(password)) < MinPasswordLen {
		return ErrWeakPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.cols.Users()
	idx := indexByPhone(users, phone)
	if idx < 0 {
		return ErrUnknownUser
	}
	hash, err := hashWithCost(password, s.cost)
	if err != nil {
		return err
	}
	users[idx].PasswordHash = hash
	users[idx].Password = ""
	return s.cols.SaveUsers(users)
}

// SetAdmin grants or revokes administrator rights.
func (s *Service) SetAdmin(id string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.cols.Users()
	for i := range users {
		if users[i].ID == id {
			users[i].IsAdmin = admin
			logging.Get(logging.CategoryAuth).Infow("admin flag changed", "id", id, "admin", admin)
			return s.cols.SaveUsers(users)
		}
	}
	return ErrUnknownUser
}

// Users lists the accounts without credentials.
func (s *Service) Users() []domain.User {
	users := s.cols.Users()
	out := make([]domain.User, len(users))
	for i, u := range users {
		out[i] = u.Public()
	}
	return out
}

func (s *Service) isAdminPhone(phone string) bool {
	return s.cfg.AdminPhone != "" && s.cfg.AdminPasswordHash != "" && strings.EqualFold(phone, s.cfg.AdminPhone)
}

func indexByPhone(users []domain.User, phone string) int {
	for i, u := range users {
		if strings.TrimSpace(u.Phone) == phone {
			return i
		}
	}
	return -1
}
