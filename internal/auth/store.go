// Package auth owns the session: the bearer token, the cached account, and
// the feature-permission table. It is the only writer of the persisted
// token/user pair.
package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aidso/geo-console/internal/models"
	"github.com/aidso/geo-console/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Persisted state filenames, mirroring the web client's localStorage keys.
const (
	tokenFile     = "auth_token"
	userFile      = "user"
	sessionIDFile = "aidso_session_id"
)

// FeatureSearch is always permitted; the core search surface is public.
const FeatureSearch = "search"

// backendClient is the slice of the API client the store needs.
type backendClient interface {
	Me(ctx context.Context) (*models.AuthUser, error)
	Permissions(ctx context.Context) ([]models.PlanPermissions, error)
	SetToken(token string)
	ClearToken()
}

// Store holds the current session. Safe for concurrent readers; all
// mutations go through its methods.
type Store struct {
	api     backendClient
	storage storage.StorageInterface

	mu          sync.RWMutex
	token       string
	user        *models.AuthUser
	permissions map[models.Plan]map[string]bool
	sessionID   string

	onChange func(loggedIn bool)
}

// NewStore creates a session store persisting through the given storage.
func NewStore(api backendClient, store storage.StorageInterface) *Store {
	return &Store{
		api:     api,
		storage: store,
	}
}

// OnSessionChange registers a callback fired after login and logout. Must be
// set before Init.
func (s *Store) OnSessionChange(fn func(loggedIn bool)) {
	s.onChange = fn
}

// Init rehydrates the session from persisted state. A persisted token with
// no cached user triggers a whoami fetch; its failure is swallowed so a
// later authenticated call can surface the real problem. Also loads the
// public permission table and ensures the analytics session id exists.
func (s *Store) Init(ctx context.Context) {
	s.mu.Lock()

	if data, err := s.storage.Retrieve(tokenFile); err == nil {
		token := string(data)
		if tokenExpired(token) {
			logrus.Info("Discarding expired persisted token")
			_ = s.storage.Delete(tokenFile)
			_ = s.storage.Delete(userFile)
		} else {
			s.token = token
			s.api.SetToken(token)
		}
	}

	if s.token != "" {
		if data, err := s.storage.Retrieve(userFile); err == nil {
			var user models.AuthUser
			if err := json.Unmarshal(data, &user); err == nil {
				s.user = &user
			}
		}
	}

	s.ensureSessionID()
	s.mu.Unlock()

	if s.HasSession() && s.User() == nil {
		if user, err := s.api.Me(ctx); err != nil {
			logrus.Warnf("Failed to hydrate user from token: %v", err)
		} else {
			s.UpdateCachedUser(user)
		}
	}

	s.loadPermissions(ctx)

	if s.onChange != nil && s.HasSession() {
		s.onChange(true)
	}
}

// EstablishSession stores a fresh token+user pair, persists both, and
// points outbound requests at the new token.
func (s *Store) EstablishSession(token string, user *models.AuthUser) {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.api.SetToken(token)

	if err := s.storage.Store(tokenFile, []byte(token)); err != nil {
		logrus.Errorf("Failed to persist token: %v", err)
	}
	s.persistUser(user)
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(true)
	}
}

// UpdateCachedUser replaces the cached account without touching token
// state, for flows where the token is already established.
func (s *Store) UpdateCachedUser(user *models.AuthUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.persistUser(user)
}

// Logout clears the session locally. No backend call is made.
func (s *Store) Logout() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.api.ClearToken()
	_ = s.storage.Delete(tokenFile)
	_ = s.storage.Delete(userFile)
	s.mu.Unlock()

	logrus.Info("Session cleared")
	if s.onChange != nil {
		s.onChange(false)
	}
}

// CheckPermission reports whether the current session may use a feature.
// "search" is always allowed. ADMIN bypasses the table. Everyone else is
// checked against the fetched plan table, defaulting to denied while the
// table is absent.
func (s *Store) CheckPermission(feature string) bool {
	if feature == FeatureSearch {
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return false
	}
	if s.user.Role == models.RoleAdmin {
		return true
	}

	features, ok := s.permissions[s.user.Plan]
	if !ok {
		return false
	}
	return features[feature]
}

// HasSession reports whether a token is present.
func (s *Store) HasSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// User returns the cached account, or nil when logged out.
func (s *Store) User() *models.AuthUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SessionID returns the generated analytics session id.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// loadPermissions fetches the public plan table. Failure leaves the table
// empty, which denies everything except "search" and ADMIN.
func (s *Store) loadPermissions(ctx context.Context) {
	perms, err := s.api.Permissions(ctx)
	if err != nil {
		logrus.Warnf("Failed to load permission table: %v", err)
		return
	}

	table := make(map[models.Plan]map[string]bool, len(perms))
	for _, p := range perms {
		features := make(map[string]bool, len(p.Features))
		for _, f := range p.Features {
			features[f] = true
		}
		table[p.Plan] = features
	}

	s.mu.Lock()
	s.permissions = table
	s.mu.Unlock()
}

// SetPermissions replaces the permission table directly. Used by tests.
func (s *Store) SetPermissions(perms []models.PlanPermissions) {
	table := make(map[models.Plan]map[string]bool, len(perms))
	for _, p := range perms {
		features := make(map[string]bool, len(p.Features))
		for _, f := range p.Features {
			features[f] = true
		}
		table[p.Plan] = features
	}

	s.mu.Lock()
	s.permissions = table
	s.mu.Unlock()
}

func (s *Store) persistUser(user *models.AuthUser) {
	if user == nil {
		_ = s.storage.Delete(userFile)
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		logrus.Errorf("Failed to serialize user: %v", err)
		return
	}
	if err := s.storage.Store(userFile, data); err != nil {
		logrus.Errorf("Failed to persist user: %v", err)
	}
}

func (s *Store) ensureSessionID() {
	if data, err := s.storage.Retrieve(sessionIDFile); err == nil && len(data) > 0 {
		s.sessionID = string(data)
		return
	}
	s.sessionID = uuid.New().String()
	if err := s.storage.Store(sessionIDFile, []byte(s.sessionID)); err != nil {
		logrus.Warnf("Failed to persist session id: %v", err)
	}
}

// tokenExpired decodes the token as a JWT without verifying the signature
// and checks the exp claim. Opaque (non-JWT) tokens are kept as-is.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
