package auth

import (
	"context"
	"fmt"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
)

// ClerkProvider verifies Clerk session tokens. The Clerk user id (the JWT
// subject) is the user id used everywhere else in the service.
type ClerkProvider struct {
	secretKey string
}

func NewClerkProvider(secretKey string) *ClerkProvider {
	clerk.SetKey(secretKey)

	return &ClerkProvider{secretKey: secretKey}
}

func (p *ClerkProvider) Authenticate(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	return claims.Subject, nil
}

func (p *ClerkProvider) Name() string {
	return "clerk"
}
