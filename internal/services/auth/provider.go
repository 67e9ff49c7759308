package auth

import "context"

// Provider authenticates a bearer credential and resolves the user it
// belongs to. Identity itself is delegated to the configured provider;
// the rest of the service only ever sees the resolved user id.
type Provider interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
	Name() string
}
