package gateway

import "context"

// CredentialManager fetches and caches gateway secrets (C3). Implementations
// use envelope encryption (KMS-generated data key + AEAD) for every
// at-rest copy; the cache is invalidated on rotation events.
type CredentialManager interface {
	// Get returns decrypted Credentials for (merchantID, gatewayType),
	// serving from a short-TTL cache where possible.
	Get(ctx context.Context, merchantID, gatewayType string) (Credentials, error)

	// Rotate invalidates any cached credentials for (merchantID,
	// gatewayType) so the next Get re-fetches from the secret store.
	Rotate(ctx context.Context, merchantID, gatewayType string) error
}
