package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campusnotes/notes-admin/internal/catalog"
	"github.com/campusnotes/notes-admin/internal/gate"
)

const (
	browserCookie    = "notes_admin_bid"
	browserCookieAge = 365 * 24 * 60 * 60

	browserIDKey = "browser_id"
	actorKey     = "actor"
)

var (
	ErrNoSession     = errors.New("no admin session")
	ErrSessionCheck  = errors.New("session check in progress")
	ErrActorNotFound = errors.New("acting admin not found")
)

// Actor is the admin behind a gated request
type Actor struct {
	ID    string // empty for demo admins without a users row
	Email string
}

// BrowserIDMiddleware assigns every browser a stable id cookie. The id keys
// the browser's credential, backend session and gate.
func BrowserIDMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(browserCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(browserCookie, id, browserCookieAge, "/", "", secure, true)
		}
		c.Set(browserIDKey, id)
		c.Next()
	}
}

func browserID(c *gin.Context) string {
	return c.GetString(browserIDKey)
}

// responder renders the two non-authenticated gate states
type responder interface {
	loading(c *gin.Context)
	unauthenticated(c *gin.Context)
}

type pageResponder struct{}

func (pageResponder) loading(c *gin.Context) {
	c.HTML(http.StatusOK, "loading.html", gin.H{"Title": "Checking your session"})
	c.Abort()
}

func (pageResponder) unauthenticated(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/login")
	c.Abort()
}

type jsonResponder struct{}

func (jsonResponder) loading(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": ErrSessionCheck.Error()})
}

func (jsonResponder) unauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Admin session required"})
}

// RequireAdmin lets a request through only when the browser's gate settles
// on Authenticated. It waits up to the configured settle timeout; a gate
// still Loading after that renders the neutral loading response.
func (s *Server) RequireAdmin(r responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		g := s.gates.Acquire(browserID(c))

		ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.Gate.SettleTimeout)
		state := g.Await(ctx)
		cancel()

		switch state {
		case gate.Authenticated:
			c.Next()
		case gate.Loading:
			r.loading(c)
		default:
			r.unauthenticated(c)
		}
	}
}

// actor identifies the admin behind the request. The legacy credential wins
// over the backend session, matching how the gate resolved it.
func (s *Server) actor(c *gin.Context) (Actor, error) {
	if v, ok := c.Get(actorKey); ok {
		return v.(Actor), nil
	}

	ctx := c.Request.Context()
	bid := browserID(c)

	var actor Actor
	cred, err := s.credentials.Load(ctx, bid)
	if err == nil && cred.Authenticated && !cred.Malformed() {
		actor.Email = cred.Email
		if user, err := s.catalog.UserByEmail(ctx, cred.Email); err == nil {
			actor.ID = user.ID
		} else if !errors.Is(err, catalog.ErrNotFound) {
			return Actor{}, err
		}
	} else {
		principal, err := s.auth.CurrentUser(ctx, bid)
		if err != nil {
			return Actor{}, err
		}
		if principal == nil {
			return Actor{}, ErrActorNotFound
		}
		actor = Actor{ID: principal.ID, Email: principal.Email}
	}

	c.Set(actorKey, actor)
	return actor, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}
