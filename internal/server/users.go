package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/analytics"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// DevSessionToken is stored as the backend credential for development sign-ins,
// which have no identity token to exchange.
const DevSessionToken = "dev-session"

// UserStore persists local accounts. *db.DB implements it.
type UserStore interface {
	UpsertUserBySubject(ctx context.Context, id types.Identity) (*types.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
}

// SessionBackend trades identity tokens for backend credentials.
type SessionBackend interface {
	ExchangeToken(ctx context.Context, idToken string) (*types.TokenExchangeResponse, error)
	Logout(ctx context.Context, token string) error
}

// MemoryUsers is a UserStore for servers running without a database.
type MemoryUsers struct {
	mu        sync.Mutex
	bySubject map[string]*types.User
	now       func() time.Time
}

// NewMemoryUsers creates an empty MemoryUsers.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{bySubject: make(map[string]*types.User), now: time.Now}
}

// UpsertUserBySubject creates the user on first sign-in and refreshes the profile afterwards.
func (m *MemoryUsers) UpsertUserBySubject(_ context.Context, id types.Identity) (*types.User, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	u, ok := m.bySubject[id.Subject]
	if !ok {
		u = &types.User{ID: uuid.New(), Subject: id.Subject, CreatedAt: now}
		m.bySubject[id.Subject] = u
	}
	u.Email = id.Email
	u.Name = id.Name
	u.Picture = id.Picture
	u.LastLogin = now

	out := *u
	return &out, nil
}

// GetUser returns nil, nil for unknown IDs.
func (m *MemoryUsers) GetUser(_ context.Context, userID uuid.UUID) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.bySubject {
		if u.ID == userID {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

// UserService signs users in and out.
type UserService struct {
	users     UserStore
	backend   SessionBackend
	store     *state.Store
	analytics analytics.Enqueuer
	logger    *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users UserStore, backend SessionBackend, store *state.Store, a analytics.Enqueuer, logger *slog.Logger) *UserService {
	if a == nil {
		a = analytics.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: users, backend: backend, store: store, analytics: a, logger: logger}
}

// Owner is the state document key of a user.
func Owner(userID uuid.UUID) string {
	return userID.String()
}

// SignIn records the user and stores a backend credential for them. An empty
// idToken is a development sign-in and skips the backend exchange.
func (s *UserService) SignIn(ctx context.Context, id *types.Identity, idToken string) (*types.User, error) {
	if id == nil {
		return nil, fmt.Errorf("identity is required")
	}

	token := DevSessionToken
	if idToken != "" {
		resp, err := s.backend.ExchangeToken(ctx, idToken)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange identity token: %w", err)
		}
		token = resp.AccessToken
	}

	user, err := s.users.UpsertUserBySubject(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	if err := s.store.SetSession(ctx, Owner(user.ID), token); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	analytics.EmitSignedIn(s.analytics, user.ID.String(), user.Email, user.Name)
	s.logger.Info("user signed in", "user_id", user.ID, "dev", idToken == "")
	return user, nil
}

// SignOut forgets the stored credential. Backend logout is best-effort.
func (s *UserService) SignOut(ctx context.Context, userID uuid.UUID) error {
	owner := Owner(userID)
	doc, err := s.store.Get(ctx, owner)
	if err != nil {
		return err
	}

	if token := doc.SessionToken(); token != "" && token != DevSessionToken {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.logger.Warn("backend logout failed", "user_id", userID, "error", err)
		}
	}

	if err := s.store.ClearSession(ctx, owner); err != nil {
		return err
	}
	analytics.EmitSignedOut(s.analytics, userID.String())
	s.logger.Info("user signed out", "user_id", userID)
	return nil
}

// Current loads the signed-in user's account.
func (s *UserService) Current(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &ErrNotFound{Resource: "user", ID: userID.String()}
	}
	return user, nil
}
