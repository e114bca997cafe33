// Package session owns the authenticated identity and its token pair. The
// store is the single source of truth for "who is logged in"; durable
// storage is a mirror it rehydrates from once at startup.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"esnafpanel-core/internal/model"
)

// logoutTimeout bounds the best-effort remote invalidation call so local
// sign-out is never blocked by network conditions.
const logoutTimeout = 5 * time.Second

// API is the slice of the HTTP client the store drives.
type API interface {
	Login(ctx context.Context, email, sifre string) (model.AuthResponse, error)
	Register(ctx context.Context, in model.RegisterInput) (model.AuthResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (model.User, error)
}

type Store struct {
	mu      sync.Mutex
	api     API
	storage Storage
	log     *zap.Logger

	user          *model.User
	accessToken   string
	refreshToken  string
	authenticated bool
	loading       bool
	lastError     string
}

func NewStore(storage Storage, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{storage: storage, log: log}
}

// BindAPI wires the HTTP client in after construction; the client itself
// needs the store for tokens, so the two are linked explicitly rather than
// through a global.
func (s *Store) BindAPI(api API) {
	s.mu.Lock()
	s.api = api
	s.mu.Unlock()
}

// Rehydrate loads the persisted session, once, at process start.
func (s *Store) Rehydrate() {
	stored, err := s.storage.Read()
	if err != nil {
		s.log.Warn("session rehydrate failed", zap.Error(err))
		return
	}
	if stored.AccessToken == "" {
		return
	}

	s.mu.Lock()
	s.accessToken = stored.AccessToken
	s.refreshToken = stored.RefreshToken
	s.user = stored.User
	s.authenticated = true
	s.mu.Unlock()
}

// Login exchanges credentials for a session. On failure the identity stays
// cleared, the error message is kept for the UI and the error is returned
// so callers can branch.
func (s *Store) Login(ctx context.Context, email, sifre string) error {
	s.setLoading(true)

	resp, err := s.currentAPI().Login(ctx, email, sifre)
	if err != nil {
		s.failAuth(err)
		return err
	}

	s.commitAuth(resp)
	return nil
}

// Register has the same contract as Login with registration fields.
func (s *Store) Register(ctx context.Context, in model.RegisterInput) error {
	s.setLoading(true)

	resp, err := s.currentAPI().Register(ctx, in)
	if err != nil {
		s.failAuth(err)
		return err
	}

	s.commitAuth(resp)
	return nil
}

// Logout clears the local session unconditionally. The remote invalidation
// is best-effort; its failure is logged, never surfaced.
func (s *Store) Logout(ctx context.Context) {
	s.setLoading(true)

	ctx, cancel := context.WithTimeout(ctx, logoutTimeout)
	defer cancel()
	if err := s.currentAPI().Logout(ctx); err != nil {
		s.log.Warn("remote logout failed, clearing local session anyway", zap.Error(err))
	}

	s.ForceLogout()
	s.setLoading(false)
}

// ReloadProfile re-fetches identity fields, leaving tokens untouched. A
// failure leaves existing state unchanged and is only logged.
func (s *Store) ReloadProfile(ctx context.Context) {
	user, err := s.currentAPI().Profile(ctx)
	if err != nil {
		s.log.Warn("profile reload failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.authenticated {
		u := user
		s.user = &u
		s.persistLocked()
	}
	s.mu.Unlock()
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

// ForceLogout clears session state and durable storage without a remote
// call. The gateway invokes it when a token refresh is rejected.
func (s *Store) ForceLogout() {
	s.mu.Lock()
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.authenticated = false
	s.lastError = ""
	s.mu.Unlock()

	if err := s.storage.Clear(); err != nil {
		s.log.Warn("clearing session storage failed", zap.Error(err))
	}
}

// CommitRefreshedTokens installs a refreshed token pair, but only if the
// session still holds the refresh token the exchange was made with. A pair
// arriving after logout (or after another login) is discarded so it cannot
// resurrect a dead session.
func (s *Store) CommitRefreshedTokens(oldRefresh string, pair model.TokenPair) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authenticated || s.refreshToken != oldRefresh {
		return false
	}
	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	s.persistLocked()
	return true
}

func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// CurrentUser returns a copy of the identity, or nil when signed out.
func (s *Store) CurrentUser() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) currentAPI() API {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.api
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	if v {
		s.lastError = ""
	}
	s.mu.Unlock()
}

// commitAuth writes identity and tokens together so observers never see a
// partially updated session.
func (s *Store) commitAuth(resp model.AuthResponse) {
	s.mu.Lock()
	s.user = resp.User()
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.authenticated = resp.AccessToken != ""
	s.lastError = ""
	s.loading = false
	s.persistLocked()
	s.mu.Unlock()
}

func (s *Store) failAuth(err error) {
	s.mu.Lock()
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.authenticated = false
	s.lastError = err.Error()
	s.loading = false
	s.mu.Unlock()
}

func (s *Store) persistLocked() {
	stored := Stored{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		User:         s.user,
	}
	if err := s.storage.Write(stored); err != nil {
		s.log.Warn("persisting session failed", zap.Error(err))
	}
}
