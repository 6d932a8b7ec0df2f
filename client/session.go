package client

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	// TokenCookieName is the client-side cookie mirroring the access token
	TokenCookieName = "auth_token"
	// UserStorageKey is the durable-storage record holding the profile
	UserStorageKey = "auth_user"
	// TokenCookieMaxAge is a storage policy, deliberately decoupled from
	// the token's own expiry; the server-side expiry is the security
	// boundary actually enforced.
	TokenCookieMaxAge = 7 * 24 * time.Hour
)

// Profile is the client-side view of the logged-in user
type Profile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id"`
	DepartmentID   string `json:"department_id"`
}

// ProfileUpdate is a partial profile; nil fields are left unchanged
type ProfileUpdate struct {
	Email *string
	Name  *string
}

// SessionStore is the single authoritative client-side session record.
// The token reference lives in the cookie channel, the profile in durable
// storage; only the store's own operations mutate either.
type SessionStore struct {
	mu      sync.Mutex
	user    *Profile
	token   string
	storage Storage
	cookies CookieStore
}

// NewSessionStore creates a SessionStore. storage may be nil when durable
// storage is not yet reachable (first render); the route guard accounts
// for that state.
func NewSessionStore(storage Storage, cookies CookieStore) *SessionStore {
	if cookies == nil {
		cookies = NewMemoryCookieStore()
	}
	return &SessionStore{
		storage: storage,
		cookies: cookies,
	}
}

// SetUser updates the in-memory profile and mirrors it to durable storage:
// write on non-nil, delete on nil.
func (s *SessionStore) SetUser(user *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user
	if s.storage == nil {
		return
	}
	if user == nil {
		_ = s.storage.Delete(UserStorageKey)
		return
	}
	if data, err := json.Marshal(user); err == nil {
		_ = s.storage.Set(UserStorageKey, string(data))
	}
}

// SetToken updates the cookie-backed token reference
func (s *SessionStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	if token == "" {
		s.cookies.DeleteCookie(TokenCookieName)
		return
	}
	s.cookies.SetCookie(TokenCookieName, token, TokenCookieMaxAge)
}

// Token returns the current token reference
func (s *SessionStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns the current in-memory profile, nil when logged out
func (s *SessionStore) User() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Restore re-hydrates in-memory state from the cookie and durable storage
// after a reload. It is optimistic: the token is not re-validated here,
// the real check happens server-side on the next request. A malformed
// stored profile is discarded, never surfaced as an error.
func (s *SessionStore) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		if token, ok := s.cookies.GetCookie(TokenCookieName); ok {
			s.token = token
		}
	}

	if s.user != nil || s.storage == nil {
		return
	}
	raw, ok := s.storage.Get(UserStorageKey)
	if !ok {
		return
	}
	profile := &Profile{}
	if err := json.Unmarshal([]byte(raw), profile); err != nil {
		_ = s.storage.Delete(UserStorageKey)
		return
	}
	s.user = profile
}

// Logout clears both persistence channels. Idempotent.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.token = ""
	s.cookies.DeleteCookie(TokenCookieName)
	if s.storage != nil {
		_ = s.storage.Delete(UserStorageKey)
	}
}

// UpdateUser merges a partial update into the profile and re-persists it.
// No-op when no profile is present.
func (s *SessionStore) UpdateUser(update ProfileUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return
	}
	if update.Email != nil {
		s.user.Email = *update.Email
	}
	if update.Name != nil {
		s.user.Name = *update.Name
	}
	if s.storage == nil {
		return
	}
	if data, err := json.Marshal(s.user); err == nil {
		_ = s.storage.Set(UserStorageKey, string(data))
	}
}

// IsAuthenticated reports token presence only. An expired-but-present
// token still reports true until a server call returns 401.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// StorageAvailable reports whether durable storage is reachable
func (s *SessionStore) StorageAvailable() bool {
	return s.storage != nil
}

// TokenDetectable reports whether a token reference exists in the cookie
// channel, regardless of in-memory state
func (s *SessionStore) TokenDetectable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return true
	}
	_, ok := s.cookies.GetCookie(TokenCookieName)
	return ok
}
