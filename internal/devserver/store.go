// Package devserver is a local stand-in for the production backend: the
// five auth endpoints plus the socket.io push channel, with in-memory
// state. It exists so the client core can run and be tested end to end.
package devserver

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"esnafpanel-core/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnknownToken       = errors.New("unknown refresh token")
	ErrUnknownUser        = errors.New("unknown user")
)

type userRecord struct {
	model.User
	PasswordHash string
	CreatedAt    time.Time
}

// Store holds users and the refresh-token registry. Refresh tokens rotate
// on every exchange and are revoked wholesale on logout, matching the
// production backend's contract.
type Store struct {
	mu            sync.RWMutex
	usersByEmail  map[string]*userRecord
	usersByID     map[string]*userRecord
	refreshTokens map[string]string // token -> userID
}

func NewStore() *Store {
	return &Store{
		usersByEmail:  make(map[string]*userRecord),
		usersByID:     make(map[string]*userRecord),
		refreshTokens: make(map[string]string),
	}
}

// SeedUser registers a user without the bcrypt cost of Register being on
// the request path; intended for demo fixtures.
func (s *Store) SeedUser(email, sifre, ad, soyad string) (model.User, error) {
	return s.CreateUser(model.RegisterInput{Email: email, Sifre: sifre, Ad: ad, Soyad: soyad})
}

func (s *Store) CreateUser(in model.RegisterInput) (model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Sifre == "" {
		return model.User{}, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Sifre), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}

	rol := in.Rol
	if rol == "" {
		rol = "isletme_sahibi"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[email]; exists {
		return model.User{}, ErrEmailTaken
	}

	rec := &userRecord{
		User: model.User{
			ID:      uuid.NewString(),
			Email:   email,
			Ad:      strings.TrimSpace(in.Ad),
			Soyad:   strings.TrimSpace(in.Soyad),
			Telefon: strings.TrimSpace(in.Telefon),
			Rol:     rol,
		},
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	s.usersByEmail[email] = rec
	s.usersByID[rec.ID] = rec
	return rec.User, nil
}

func (s *Store) Authenticate(email, sifre string) (model.User, error) {
	s.mu.RLock()
	rec, exists := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !exists {
		return model.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(sifre)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	return rec.User, nil
}

func (s *Store) UserByID(id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, exists := s.usersByID[id]
	if !exists {
		return model.User{}, ErrUnknownUser
	}
	return rec.User, nil
}

// RegisterRefreshToken records a freshly minted refresh token.
func (s *Store) RegisterRefreshToken(token, userID string) {
	s.mu.Lock()
	s.refreshTokens[token] = userID
	s.mu.Unlock()
}

// ConsumeRefreshToken validates and removes a refresh token; the caller
// mints and registers the replacement. A token can be exchanged once.
func (s *Store) ConsumeRefreshToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, exists := s.refreshTokens[token]
	if !exists {
		return "", ErrUnknownToken
	}
	delete(s.refreshTokens, token)
	return userID, nil
}

// RevokeUserTokens drops every refresh token the user holds (logout).
func (s *Store) RevokeUserTokens(userID string) {
	s.mu.Lock()
	for token, owner := range s.refreshTokens {
		if owner == userID {
			delete(s.refreshTokens, token)
		}
	}
	s.mu.Unlock()
}
