// Package auth implements account registration, login and token
// verification for the backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moodtunes-api-go/logcolors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// User is a registered account. PasswordHash never leaves the service in a
// response body.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,has_upper,has_digit"`
	Username string `json:"username" validate:"required,min=3,max=30,username"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is the result of a successful login.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Options configures a Service.
type Options struct {
	Secret   []byte
	TokenTTL time.Duration
	Cost     int
	// Now is used for token timestamps; defaults to time.Now.
	Now func() time.Time
}

// Service runs the auth flows against a UserStore.
type Service struct {
	users    UserStore
	secret   []byte
	tokenTTL time.Duration
	cost     int
	now      func() time.Time

	// registerMu serializes the duplicate check and insert.
	registerMu sync.Mutex
}

func NewService(users UserStore, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Cost == 0 {
		opts.Cost = 12
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		users:    users,
		secret:   opts.Secret,
		tokenTTL: opts.TokenTTL,
		cost:     opts.Cost,
		now:      opts.Now,
	}
}

// Register validates the request, rejects duplicate emails and stores the
// new user with a bcrypt hash of the password.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if verr := validateStruct(req); verr != nil {
		return nil, verr
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	exists, err := s.users.Has(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("checking user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, &ValidationError{Fields: []FieldError{{Field: "password", Message: "Must be at most 72 bytes"}}}
	}
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		ID:           "user-" + uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Put(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("storing user: %w", err)
	}

	log.Infof("%s User registered: %s", logcolors.LogAudit, logcolors.User(user.Email))
	return user, nil
}

// Login checks the credentials and issues a signed token. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if verr := validateStruct(req); verr != nil {
		return nil, verr
	}

	user, err := s.users.Get(ctx, req.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warnf("%s Failed login attempt for %s", logcolors.LogSecurity, user.Email)
		return nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	log.Infof("%s User logged in: %s", logcolors.LogAudit, logcolors.User(user.Email))
	return &Session{Token: token, Username: user.Username, Email: user.Email}, nil
}
