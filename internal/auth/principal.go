package auth

import (
	"context"
	"log/slog"

	"teamchat-service/internal/repositories"
)

// Principal is the identity bound to a connection for its whole lifetime.
type Principal struct {
	UserID   int
	Username string
}

// Anonymous returns the principal used when authentication fails.
func Anonymous() Principal {
	return Principal{}
}

// IsAnonymous reports whether p carries no user.
func (p Principal) IsAnonymous() bool {
	return p.UserID == 0
}

// Authenticator resolves a handshake into a Principal.
type Authenticator struct {
	verifier *Verifier
	users    repositories.UserRepository
	log      *slog.Logger
}

// NewAuthenticator wires a verifier to the user store.
func NewAuthenticator(verifier *Verifier, users repositories.UserRepository, log *slog.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, users: users, log: log}
}

// Authenticate never fails: any problem yields Anonymous.
func (a *Authenticator) Authenticate(ctx context.Context, header, query string) Principal {
	raw := ExtractToken(header, query)
	if raw == "" {
		return Anonymous()
	}
	userID, err := a.verifier.Verify(raw)
	if err != nil {
		a.log.Debug("token rejected", "error", err)
		return Anonymous()
	}
	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		a.log.Debug("token subject not resolved", "user_id", userID, "error", err)
		return Anonymous()
	}
	return Principal{UserID: user.ID, Username: user.Username}
}
