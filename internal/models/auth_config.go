package models

type AuthConfig struct {
	Provider    string           `json:"provider" yaml:"provider"`
	ClerkConfig *ClerkAuthConfig `json:"clerk,omitempty" yaml:"clerk,omitempty"`
	JWTConfig   *JWTAuthConfig   `json:"jwt,omitempty" yaml:"jwt,omitempty"`
}

type ClerkAuthConfig struct {
	SecretKey     string `json:"secret_key" yaml:"secret_key"`
	WebhookSecret string `json:"webhook_secret" yaml:"webhook_secret"`
}

// JWTAuthConfig configures the static-secret token verifier used by
// self-hosted deployments that do not delegate identity to Clerk.
type JWTAuthConfig struct {
	Secret string `json:"secret" yaml:"secret"`
}
