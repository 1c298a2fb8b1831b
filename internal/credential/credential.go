// Package credential owns the legacy admin credential: a per-browser flag
// written by the login flow that short-circuits session resolution.
package credential

import (
	"context"
	"strings"
)

// Field names inside a browser's credential namespace
const (
	KeyAuthenticated = "demoAdminAuth"
	KeyEmail         = "demoAdminEmail"
	KeyProvider      = "demoAdminProvider"
)

// Providers recorded in KeyProvider
const (
	ProviderDemo    = "demo"
	ProviderBackend = "backend"
)

// Credential is the decoded legacy credential of one browser
type Credential struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email"`
	Provider      string `json:"provider"`
}

// Malformed reports a set flag without the principal email that must accompany it
func (c Credential) Malformed() bool {
	return c.Authenticated && strings.TrimSpace(c.Email) == ""
}

func (c Credential) fields() map[string]string {
	fields := map[string]string{
		KeyEmail:    c.Email,
		KeyProvider: c.Provider,
	}
	if c.Authenticated {
		fields[KeyAuthenticated] = "true"
	}
	return fields
}

func decode(fields map[string]string) Credential {
	return Credential{
		Authenticated: fields[KeyAuthenticated] == "true",
		Email:         fields[KeyEmail],
		Provider:      fields[KeyProvider],
	}
}

// Cache stores legacy credentials keyed by browser id and notifies watchers
// whenever a browser's credential is written or cleared, including writes made
// by other server instances when the backing store is shared.
type Cache interface {
	Load(ctx context.Context, browserID string) (Credential, error)
	Store(ctx context.Context, browserID string, c Credential) error
	Clear(ctx context.Context, browserID string) error
	// Watch calls fn after every change to browserID's credential
	Watch(browserID string, fn func()) (unsubscribe func())
}
