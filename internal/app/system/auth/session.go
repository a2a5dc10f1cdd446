package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	isAuthKey    = "is_authenticated"
	userIDKey    = "user_id"
	userNameKey  = "user_name"
	sessionIDKey = "session_id"

	clientCookieSuffix = "-client"
)

// SessionUser is what the session cookie carries and LoadSessionUser puts in
// the request context. SessionID is the hex id of the server-side session
// record.
type SessionUser struct {
	ID        string
	Name      string
	SessionID string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the signed-in user, if any.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u into r's context the way LoadSessionUser would.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// SessionManager owns the two cookies topaz sets: the signed-in session and
// the long-lived client id that keys per-client navigation.
type SessionManager struct {
	store      *sessions.CookieStore
	name       string
	client     *securecookie.SecureCookie
	clientName string
	secure     bool
	domain     string
	log        *zap.Logger
}

// NewSessionManager builds the cookie store. secure marks cookies Secure
// with SameSite=None (production over HTTPS); otherwise SameSite=Lax so
// cookies work on http://localhost.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, errors.New("session key is empty; provide 32+ random chars")
	}
	if name == "" {
		return nil, errors.New("session name is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = cookieOptions(domain, secure, int(maxAge.Seconds()))

	client := securecookie.New([]byte(sessionKey), nil)
	client.MaxAge(0)

	logger.Info("session manager initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{
		store:      store,
		name:       name,
		client:     client,
		clientName: name + clientCookieSuffix,
		secure:     secure,
		domain:     domain,
		log:        logger,
	}, nil
}

func cookieOptions(domain string, secure bool, maxAge int) *sessions.Options {
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	}
	return opts
}

// Name returns the session cookie name.
func (m *SessionManager) Name() string { return m.name }

// GetSession returns the cookie session. A cookie that fails to decode
// (rotated key, tampering) yields a fresh session along with the error.
func (m *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return m.store.Get(r, m.name)
}

// SignIn records u in the session cookie.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	sess, err := m.GetSession(r)
	if err != nil {
		m.log.Warn("session cookie invalid, using fresh session", zap.Error(err))
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userNameKey] = u.Name
	sess.Values[sessionIDKey] = u.SessionID
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SignOut clears the session cookie and returns the user it carried.
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) (SessionUser, error) {
	sess, _ := m.GetSession(r)
	u := userFrom(sess)

	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options = cookieOptions(m.domain, m.secure, -1)
	if err := sess.Save(r, w); err != nil {
		return u, fmt.Errorf("clear session: %w", err)
	}
	return u, nil
}

// LoadSessionUser injects the signed-in user into the request context.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.GetSession(r)
		if err == nil {
			if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
				u := userFrom(sess)
				r = withUser(r, &u)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ClientID returns the id of the browser making r, issuing a signed cookie
// with a new id when the request has none (or an invalid one).
func (m *SessionManager) ClientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(m.clientName); err == nil {
		var id string
		if err := m.client.Decode(m.clientName, c.Value, &id); err == nil && id != "" {
			return id
		}
	}

	id := uuid.NewString()
	encoded, err := m.client.Encode(m.clientName, id)
	if err != nil {
		m.log.Error("encode client cookie failed", zap.Error(err))
		return id
	}
	sameSite := http.SameSiteLaxMode
	if m.secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.clientName,
		Value:    encoded,
		Path:     "/",
		Domain:   m.domain,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
	return id
}

func userFrom(s *sessions.Session) SessionUser {
	return SessionUser{
		ID:        getString(s, userIDKey),
		Name:      getString(s, userNameKey),
		SessionID: getString(s, sessionIDKey),
	}
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
