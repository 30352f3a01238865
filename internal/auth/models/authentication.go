package models

// Authentication is the principal held by the security context for one request.
type Authentication interface {
	// Login is the account login the principal stands for; empty for the anonymous placeholder.
	Login() string
	// Credentials is what the principal was authenticated with.
	Credentials() string
	SessionID() string
	IsAuthenticated() bool
	String() string
}

// Anonymous is the placeholder installed before any real principal is known.
type Anonymous struct{}

func (Anonymous) Login() string         { return "" }
func (Anonymous) Credentials() string   { return "" }
func (Anonymous) SessionID() string     { return "" }
func (Anonymous) IsAuthenticated() bool { return false }
func (Anonymous) String() string        { return "anonymous" }

// Authenticated is a resolved principal. Remote-user authentication sets Credentials
// to the login itself; bearer authentication sets it to the token subject.
type Authenticated struct {
	login       string
	credentials string
	sessionID   string
}

func NewAuthenticated(login, credentials, sessionID string) *Authenticated {
	return &Authenticated{login: login, credentials: credentials, sessionID: sessionID}
}

func (a *Authenticated) Login() string         { return a.login }
func (a *Authenticated) Credentials() string   { return a.credentials }
func (a *Authenticated) SessionID() string     { return a.sessionID }
func (a *Authenticated) IsAuthenticated() bool { return true }
func (a *Authenticated) String() string {
	return "authenticated(login=" + a.login + ", session=" + a.sessionID + ")"
}

// IsAuthenticated reports whether a is a real principal. nil and the anonymous
// placeholder are not.
func IsAuthenticated(a Authentication) bool {
	return a != nil && a.IsAuthenticated()
}

// Describe renders a principal for logs; nil renders as the empty string.
func Describe(a Authentication) string {
	if a == nil {
		return ""
	}
	return a.String()
}
