// Package identity signs users up and in, and resolves bearer tokens into
// core.Session values.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"homeinspect/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoSession          = errors.New("no active session")
	ErrInvalidSignup      = errors.New("invalid signup request")
)

const (
	DefaultSessionTTL = 6 * time.Hour
	minPasswordLength = 8
)

// User is a registered account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         core.Role
	CreatedAt    time.Time
}

// SessionRecord is a persisted session.
type SessionRecord struct {
	Token     string
	UserID    string
	Role      core.Role
	ExpiresAt time.Time
}

// Store persists users and sessions. Lookups of unknown rows return
// ErrUserNotFound or ErrNoSession.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	CreateSession(ctx context.Context, s SessionRecord) error
	Session(ctx context.Context, token string) (SessionRecord, error)
	DeleteSession(ctx context.Context, token string) error
}

// Provider is the auth surface used by the HTTP layer.
type Provider struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	cost  int
}

type Option func(*Provider)

func WithClock(now func() time.Time) Option { return func(p *Provider) { p.now = now } }

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option { return func(p *Provider) { p.cost = cost } }

func NewProvider(store Store, ttl time.Duration, opts ...Option) *Provider {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	p := &Provider{store: store, ttl: ttl, now: time.Now, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SignUp registers a user. An empty role defaults to RoleUser.
func (p *Provider) SignUp(ctx context.Context, email, password string, role core.Role) (User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, fmt.Errorf("%w: email %q", ErrInvalidSignup, email)
	}
	if len(password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidSignup, minPasswordLength)
	}
	if role == "" {
		role = core.RoleUser
	}
	if !role.IsValid() {
		return User{}, fmt.Errorf("%w: role %q", ErrInvalidSignup, role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashed),
		Role:         role,
		CreatedAt:    p.now().UTC(),
	}
	if err := p.store.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// SignIn checks credentials and opens a new session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (core.Session, error) {
	u, err := p.store.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return core.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.Session{}, ErrInvalidCredentials
	}

	rec := SessionRecord{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		Role:      u.Role,
		ExpiresAt: p.now().Add(p.ttl).UTC(),
	}
	if err := p.store.CreateSession(ctx, rec); err != nil {
		return core.Session{}, fmt.Errorf("create session: %w", err)
	}
	return core.Session{UserID: rec.UserID, Role: rec.Role, Token: rec.Token}, nil
}

// GetSession resolves a token. Expired sessions are removed and reported as
// ErrNoSession.
func (p *Provider) GetSession(ctx context.Context, token string) (core.Session, error) {
	if token == "" {
		return core.Session{}, ErrNoSession
	}
	rec, err := p.store.Session(ctx, token)
	if err != nil {
		return core.Session{}, err
	}
	if !p.now().Before(rec.ExpiresAt) {
		_ = p.store.DeleteSession(ctx, token)
		return core.Session{}, ErrNoSession
	}
	return core.Session{UserID: rec.UserID, Role: rec.Role, Token: rec.Token}, nil
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	err := p.store.DeleteSession(ctx, token)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
