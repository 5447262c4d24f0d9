package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session keys holding the signed-in principal and backend credentials.
const (
	sessionKeyRole         = "role"
	sessionKeyName         = "name"
	sessionKeyEmail        = "email"
	sessionKeyAccessToken  = "access_token"
	sessionKeyRefreshToken = "refresh_token"
)

// FlashMessage represents a one-time notification stored in session.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Principal describes the user signed in to the session.
type Principal struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data. Values are guarded by a mutex
// because backend calls fanned out from one request may rotate tokens.
type Session struct {
	ID        string
	mu        sync.Mutex
	values    map[string]string
	userID    string
	flashes   []FlashMessage
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	Values  map[string]string `json:"values"`
	UserID  string            `json:"user_id"`
	Flashes []FlashMessage    `json:"flashes"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load loads or creates a new session for request.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := sm.newSession()
	sess.ID = cookie.Value
	if stored.Values != nil {
		sess.values = stored.Values
	}
	sess.userID = stored.UserID
	sess.flashes = stored.Flashes
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}

	if sess.ID == "" {
		sess.ID = sm.generateSessionID()
	}

	if sess.dirty || sess.isNew {
		data, err := json.Marshal(sessionPayload{Values: sess.values, UserID: sess.userID, Flashes: sess.flashes})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
		sess.isNew = false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.mu.Lock()
	sess.destroyed = true
	sess.values = make(map[string]string)
	sess.userID = ""
	sess.mu.Unlock()
}

// Renew moves sess to a fresh ID and drops the stored copy under the old one.
// Call it whenever the privilege level changes, such as on sign-in.
func (sm *SessionManager) Renew(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	previous, stored := sess.ID, !sess.isNew
	sess.ID = sm.generateSessionID()
	sess.isNew = true
	sess.dirty = true
	if !stored || previous == "" {
		return nil
	}
	if err := sm.client.Del(ctx, sm.redisKey(previous)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

func (s *Session) setLocked(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// SignIn associates the session with a principal and its backend tokens.
func (s *Session) SignIn(p Principal, accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = p.ID
	s.setLocked(sessionKeyRole, p.Role)
	s.setLocked(sessionKeyName, p.Name)
	s.setLocked(sessionKeyEmail, p.Email)
	s.setLocked(sessionKeyAccessToken, accessToken)
	s.setLocked(sessionKeyRefreshToken, refreshToken)
}

// User returns the current user ID.
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Principal returns the signed-in principal, or false for anonymous sessions.
func (s *Session) Principal() (Principal, bool) {
	if s == nil {
		return Principal{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return Principal{}, false
	}
	return Principal{
		ID:    s.userID,
		Name:  s.values[sessionKeyName],
		Email: s.values[sessionKeyEmail],
		Role:  s.values[sessionKeyRole],
	}, true
}

// Tokens returns the backend access and refresh tokens.
func (s *Session) Tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[sessionKeyAccessToken], s.values[sessionKeyRefreshToken]
}

// SetTokens replaces the backend tokens after a refresh.
func (s *Session) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(sessionKeyAccessToken, accessToken)
	if refreshToken != "" {
		s.setLocked(sessionKeyRefreshToken, refreshToken)
	}
}

// ClearTokens drops the backend tokens, leaving the session anonymous.
func (s *Session) ClearTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, sessionKeyAccessToken)
	delete(s.values, sessionKeyRefreshToken)
	s.userID = ""
	s.dirty = true
}

// SignOut drops every value bound to the signed-in user but keeps pending
// flashes, so the next page can explain why the user was signed out.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	s.userID = ""
	s.dirty = true
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(msg FlashMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash retrieves and clears the oldest flash message.
func (s *Session) PopFlash() *FlashMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:     sm.generateSessionID(),
		values: make(map[string]string),
		isNew:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "grocerops:session:" + id
}

func (sm *SessionManager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(sm.secret) > 0 {
		for i := range b {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
