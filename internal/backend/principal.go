package backend

// Principal is the identity the backend reports for a signed-in browser.
// Callers read it and never mutate it.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthEvent names a backend auth state transition
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// StateChange is pushed to OnAuthStateChange listeners
type StateChange struct {
	BrowserID string
	Event     AuthEvent
	Principal *Principal // nil on sign-out
}
