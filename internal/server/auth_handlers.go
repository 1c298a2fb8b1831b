package server

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusnotes/notes-admin/internal/authbus"
	"github.com/campusnotes/notes-admin/internal/backend"
	"github.com/campusnotes/notes-admin/internal/credential"
	"github.com/campusnotes/notes-admin/internal/gate"
	"github.com/campusnotes/notes-admin/internal/profile"
	"github.com/campusnotes/notes-admin/internal/tasks"
)

// LoginRequest is the login form
type LoginRequest struct {
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required"`
}

// SessionResponse describes the browser's current verdict
type SessionResponse struct {
	Verdict  string `json:"verdict"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider,omitempty"`
}

func (s *Server) renderLogin(c *gin.Context, status int, email, message string) {
	c.HTML(status, "login.html", gin.H{
		"Title": "Sign in",
		"Email": email,
		"Error": message,
	})
}

func (s *Server) loginPage(c *gin.Context) {
	g := s.gates.Acquire(browserID(c))
	if g.State() == gate.Authenticated {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	s.renderLogin(c, http.StatusOK, "", "")
}

// isDemoAdmin reports whether the submitted credentials match the configured
// demo admin account
func (s *Server) isDemoAdmin(req LoginRequest) bool {
	email, password := s.config.Gate.DemoAdminEmail, s.config.Gate.DemoAdminPassword
	if email == "" || password == "" {
		return false
	}
	return backend.NormalizeEmail(req.Email) == backend.NormalizeEmail(email) &&
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(password)) == 1
}

// login signs the browser in either as the demo admin, which writes the
// legacy credential, or through the backend, which requires an admin profile.
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		s.renderLogin(c, http.StatusBadRequest, req.Email, "Enter a valid email and password")
		return
	}

	ctx := c.Request.Context()
	bid := browserID(c)
	log := s.logger.With().Str("browser_id", bid).Logger()

	var email string
	if s.isDemoAdmin(req) {
		email = backend.NormalizeEmail(req.Email)
		cred := credential.Credential{Authenticated: true, Email: email, Provider: credential.ProviderDemo}
		if err := s.credentials.Store(ctx, bid, cred); err != nil {
			log.Error().Err(err).Msg("Failed to store demo credential")
			s.renderLogin(c, http.StatusServiceUnavailable, req.Email, "Sign-in is unavailable, try again")
			return
		}
	} else {
		principal, err := s.auth.SignIn(ctx, bid, req.Email, req.Password)
		if errors.Is(err, backend.ErrInvalidCredentials) {
			log.Info().Str("email", req.Email).Msg("Rejected sign-in")
			s.renderLogin(c, http.StatusUnauthorized, req.Email, "Invalid email or password")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("Backend sign-in failed")
			s.renderLogin(c, http.StatusServiceUnavailable, req.Email, "Sign-in is unavailable, try again")
			return
		}

		role, err := s.profiles.Role(ctx, principal.ID)
		if err != nil || role != s.config.Gate.AdminRole {
			if err != nil && !errors.Is(err, profile.ErrNotFound) {
				log.Error().Err(err).Msg("Failed to check admin profile at sign-in")
			}
			if err := s.auth.SignOut(ctx, bid); err != nil {
				log.Warn().Err(err).Msg("Failed to sign out non-admin principal")
			}
			s.renderLogin(c, http.StatusForbidden, req.Email, "This account does not have admin access")
			return
		}
		email = principal.Email
	}

	s.bus.Publish(authbus.Event{BrowserID: bid, Reason: authbus.ReasonLogin})
	s.audit(c, Actor{Email: email}, tasks.ActionLogin, "session", "")

	log.Info().Str("email", email).Msg("Admin signed in")
	c.Redirect(http.StatusSeeOther, "/")
}

// logout clears both sign-in mechanisms for the browser
func (s *Server) logout(c *gin.Context) {
	ctx := c.Request.Context()
	bid := browserID(c)
	log := s.logger.With().Str("browser_id", bid).Logger()

	actor, actorErr := s.actor(c)

	if err := s.credentials.Clear(ctx, bid); err != nil {
		log.Error().Err(err).Msg("Failed to clear legacy credential")
	}
	if err := s.auth.SignOut(ctx, bid); err != nil {
		log.Error().Err(err).Msg("Failed to sign out of backend")
	}
	s.bus.Publish(authbus.Event{BrowserID: bid, Reason: authbus.ReasonLogout})

	if actorErr == nil {
		s.audit(c, actor, tasks.ActionLogout, "session", "")
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

// @Router /api/session [get]
// @Success 200 {object} SessionResponse
func (s *Server) getSession(c *gin.Context) {
	g := s.gates.Acquire(browserID(c))
	resp := SessionResponse{Verdict: g.State().String()}

	cred, err := s.credentials.Load(c.Request.Context(), browserID(c))
	if err == nil && cred.Authenticated {
		resp.Provider = cred.Provider
	} else {
		resp.Provider = credential.ProviderBackend
	}

	actor, err := s.actor(c)
	if err != nil {
		respondWithError(c, s.logger, http.StatusUnauthorized, err, "Admin session required")
		return
	}
	resp.UserID, resp.Email = actor.ID, actor.Email
	c.JSON(http.StatusOK, resp)
}

// gateEvents streams the browser's gate state as server-sent events,
// starting with the current one.
func (s *Server) gateEvents(c *gin.Context) {
	g := s.gates.Acquire(browserID(c))

	// coalesce bursts; the stream always reports the state current when it wakes
	wake := make(chan struct{}, 1)
	unwatch := g.Watch(func(gate.State) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unwatch()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("verdict", g.State().String())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-wake:
			c.SSEvent("verdict", g.State().String())
			return true
		case <-g.Done():
			return false
		case <-c.Request.Context().Done():
			return false
		}
	})
}
