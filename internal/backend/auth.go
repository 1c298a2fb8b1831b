// Package backend is the notes platform's auth provider: password sign-in,
// one JWT session per browser, auth state notifications and token refresh.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/campusnotes/notes-admin/internal/models"
	"github.com/campusnotes/notes-admin/internal/pubsub"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type session struct {
	token     string
	expiresAt time.Time
	principal Principal
}

// Auth holds the backend sessions of every browser
type Auth struct {
	db      *gorm.DB
	tokens  *TokenIssuer
	log     zerolog.Logger
	changes *pubsub.Topic[StateChange]

	mu       sync.Mutex
	sessions map[string]session
}

// NewAuth creates an auth provider over the users table
func NewAuth(db *gorm.DB, tokens *TokenIssuer, log zerolog.Logger) *Auth {
	return &Auth{
		db:       db,
		tokens:   tokens,
		log:      log,
		changes:  pubsub.NewTopic[StateChange](),
		sessions: make(map[string]session),
	}
}

// NormalizeEmail lowercases and trims an email for lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignIn verifies the password and opens a session for the browser
func (a *Auth) SignIn(ctx context.Context, browserID, email, password string) (*Principal, error) {
	var user models.User
	if err := a.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := a.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	principal := Principal{ID: user.ID, Email: user.Email}
	a.mu.Lock()
	a.sessions[browserID] = session{token: token, expiresAt: expiresAt, principal: principal}
	a.mu.Unlock()

	a.log.Info().Str("browser_id", browserID).Str("user_id", user.ID).Msg("Backend session opened")
	a.changes.Publish(StateChange{BrowserID: browserID, Event: EventSignedIn, Principal: &principal})
	return &principal, nil
}

// CurrentUser returns the principal signed in on the browser, or nil. A
// session whose token no longer validates is dropped and announced as a
// sign-out.
func (a *Auth) CurrentUser(ctx context.Context, browserID string) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	s, ok := a.sessions[browserID]
	a.mu.Unlock()
	if !ok {
		return nil, nil
	}

	claims, err := a.tokens.Validate(s.token)
	if err != nil {
		a.log.Info().Err(err).Str("browser_id", browserID).Msg("Backend session token rejected")
		a.drop(browserID, s.token)
		return nil, nil
	}
	return &Principal{ID: claims.Subject, Email: claims.Email}, nil
}

// SignOut closes the browser's session. Signing out without a session is a no-op.
func (a *Auth) SignOut(ctx context.Context, browserID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	s, ok := a.sessions[browserID]
	a.mu.Unlock()
	if ok {
		a.drop(browserID, s.token)
	}
	return nil
}

// drop removes the session if it still holds token and announces the sign-out
func (a *Auth) drop(browserID, token string) {
	a.mu.Lock()
	s, ok := a.sessions[browserID]
	removed := ok && s.token == token
	if removed {
		delete(a.sessions, browserID)
	}
	a.mu.Unlock()

	if removed {
		a.log.Info().Str("browser_id", browserID).Str("user_id", s.principal.ID).Msg("Backend session closed")
		a.changes.Publish(StateChange{BrowserID: browserID, Event: EventSignedOut})
	}
}

// OnAuthStateChange calls fn for every auth state change of browserID
func (a *Auth) OnAuthStateChange(browserID string, fn func(StateChange)) func() {
	return a.changes.Subscribe(func(c StateChange) {
		if c.BrowserID == browserID {
			fn(c)
		}
	})
}

// browsersOf returns the sessions signed in as userID, keyed by browser
func (a *Auth) browsersOf(userID string) map[string]session {
	a.mu.Lock()
	defer a.mu.Unlock()

	found := make(map[string]session)
	for browserID, s := range a.sessions {
		if s.principal.ID == userID {
			found[browserID] = s
		}
	}
	return found
}

// UserUpdated announces to every browser signed in as userID that the
// account changed, so listeners check its role again. Returns the number of
// sessions notified.
func (a *Auth) UserUpdated(userID string) int {
	sessions := a.browsersOf(userID)
	for browserID, s := range sessions {
		principal := s.principal
		a.changes.Publish(StateChange{BrowserID: browserID, Event: EventUserUpdated, Principal: &principal})
	}
	if len(sessions) > 0 {
		a.log.Info().Str("user_id", userID).Int("sessions", len(sessions)).Msg("Announced account update")
	}
	return len(sessions)
}

// SignOutUser closes every session of userID. Returns the number closed.
func (a *Auth) SignOutUser(userID string) int {
	sessions := a.browsersOf(userID)
	for browserID, s := range sessions {
		a.drop(browserID, s.token)
	}
	return len(sessions)
}

// RefreshExpiring re-issues every token expiring within window. Sessions
// whose user row is gone are signed out. Returns the number of refreshed tokens.
func (a *Auth) RefreshExpiring(ctx context.Context, window time.Duration) (int, error) {
	deadline := a.tokens.now().Add(window)

	due := make(map[string]session)
	a.mu.Lock()
	for browserID, s := range a.sessions {
		if s.expiresAt.Before(deadline) {
			due[browserID] = s
		}
	}
	a.mu.Unlock()

	refreshed := 0
	for browserID, s := range due {
		var user models.User
		err := models.FindByID(a.db.WithContext(ctx), s.principal.ID, &user)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.drop(browserID, s.token)
			continue
		}
		if err != nil {
			return refreshed, fmt.Errorf("failed to load user %s: %w", s.principal.ID, err)
		}

		token, expiresAt, err := a.tokens.Issue(user.ID, user.Email)
		if err != nil {
			return refreshed, err
		}

		principal := Principal{ID: user.ID, Email: user.Email}
		a.mu.Lock()
		current, ok := a.sessions[browserID]
		swapped := ok && current.token == s.token
		if swapped {
			a.sessions[browserID] = session{token: token, expiresAt: expiresAt, principal: principal}
		}
		a.mu.Unlock()

		if swapped {
			refreshed++
			a.changes.Publish(StateChange{BrowserID: browserID, Event: EventTokenRefreshed, Principal: &principal})
		}
	}
	return refreshed, nil
}

// Sessions returns the number of open sessions
func (a *Auth) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}
