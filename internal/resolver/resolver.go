// Package resolver decides whether a browser belongs to an authenticated
// administrator.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusnotes/notes-admin/internal/backend"
	"github.com/campusnotes/notes-admin/internal/credential"
	"github.com/campusnotes/notes-admin/internal/metrics"
	"github.com/campusnotes/notes-admin/internal/profile"
)

// Verdict is the outcome of a resolution. Unknown is never returned by
// Resolve; it marks a verdict that has not been computed yet.
type Verdict int

const (
	Unknown Verdict = iota
	Authenticated
	Unauthenticated
)

func (v Verdict) String() string {
	switch v {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Failure taxonomy. Every failure resolves to Unauthenticated.
var (
	ErrNetworkFailure      = errors.New("backend unreachable")
	ErrProfileNotFound     = errors.New("principal has no admin profile")
	ErrRoleMismatch        = errors.New("principal is not an administrator")
	ErrMalformedLocalState = errors.New("legacy credential set without principal email")
)

// Reasons recorded with every verdict
const (
	ReasonLegacyCredential = "legacy_credential"
	ReasonAdminProfile     = "admin_profile"
	ReasonNoPrincipal      = "no_principal"
	ReasonNetworkFailure   = "network_failure"
	ReasonProfileNotFound  = "profile_not_found"
	ReasonRoleMismatch     = "role_mismatch"
)

// AuthProvider is the part of the backend the resolver reads
type AuthProvider interface {
	CurrentUser(ctx context.Context, browserID string) (*backend.Principal, error)
}

// Resolver reconciles the legacy credential with the backend session and
// admin profile. It only reads.
type Resolver struct {
	cache     credential.Cache
	auth      AuthProvider
	profiles  profile.Store
	adminRole string
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

func New(cache credential.Cache, auth AuthProvider, profiles profile.Store, adminRole string, log zerolog.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		cache:     cache,
		auth:      auth,
		profiles:  profiles,
		adminRole: adminRole,
		log:       log,
		metrics:   m,
	}
}

// Resolve returns Authenticated or Unauthenticated for the browser. It never
// fails: lookup errors are logged and resolve to Unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, browserID string) Verdict {
	start := time.Now()
	verdict, reason, err := r.resolve(ctx, browserID)

	r.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	r.metrics.Resolutions.WithLabelValues(verdict.String(), reason).Inc()

	event := r.log.Debug()
	if err != nil {
		event = r.log.Warn().Err(err)
	}
	event.Str("browser_id", browserID).
		Str("verdict", verdict.String()).
		Str("reason", reason).
		Dur("duration", time.Since(start)).
		Msg("Session resolved")

	return verdict
}

func (r *Resolver) resolve(ctx context.Context, browserID string) (Verdict, string, error) {
	cred, err := r.cache.Load(ctx, browserID)
	switch {
	case err != nil:
		r.log.Warn().Err(err).Str("browser_id", browserID).Msg("Legacy credential unreadable, resolving against backend")
	case cred.Malformed():
		r.log.Warn().Err(ErrMalformedLocalState).Str("browser_id", browserID).Msg("Ignoring legacy credential")
	case cred.Authenticated:
		// Does not re-validate the role: a revoked admin keeps access until
		// the credential is cleared.
		return Authenticated, ReasonLegacyCredential, nil
	}

	principal, err := r.auth.CurrentUser(ctx, browserID)
	if err != nil {
		return Unauthenticated, ReasonNetworkFailure, fmt.Errorf("%w: current user: %v", ErrNetworkFailure, err)
	}
	if principal == nil {
		return Unauthenticated, ReasonNoPrincipal, nil
	}

	role, err := r.profiles.Role(ctx, principal.ID)
	if errors.Is(err, profile.ErrNotFound) {
		return Unauthenticated, ReasonProfileNotFound, fmt.Errorf("%w: principal %s", ErrProfileNotFound, principal.ID)
	}
	if err != nil {
		return Unauthenticated, ReasonNetworkFailure, fmt.Errorf("%w: profile lookup: %v", ErrNetworkFailure, err)
	}
	if role != r.adminRole {
		return Unauthenticated, ReasonRoleMismatch, fmt.Errorf("%w: principal %s has role %q", ErrRoleMismatch, principal.ID, role)
	}
	return Authenticated, ReasonAdminProfile, nil
}
