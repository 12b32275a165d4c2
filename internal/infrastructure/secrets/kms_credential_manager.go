// Package secrets implements the Credential Manager (C3): gateway API
// credentials are stored encrypted at rest, wrapped by a KMS-issued data
// key, and decrypted on demand behind a short-TTL cache.
package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/gateway"
)

// DefaultCacheTTL bounds how long a decrypted credential stays in memory
// before Get re-fetches and re-decrypts it.
const DefaultCacheTTL = 5 * time.Minute

// EncryptedRecord is the at-rest shape for one merchant/gateway's
// credentials: an envelope-encrypted blob plus the KMS-wrapped data key
// needed to unwrap it.
type EncryptedRecord struct {
	CiphertextBlob []byte
	EncryptedKey   []byte
	Nonce          []byte
}

// Store persists and retrieves EncryptedRecord rows, keyed by
// (merchantID, gatewayType); the concrete store is the GORM-backed
// GormCredentialStore.
type Store interface {
	Get(ctx context.Context, merchantID, gatewayType string) (*EncryptedRecord, error)
}

// Config configures the AWS region/credentials and the KMS key used to
// generate data keys.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	KeyID     string
	CacheTTL  time.Duration
}

type cacheEntry struct {
	creds     gateway.Credentials
	expiresAt time.Time
}

// KMSCredentialManager implements gateway.CredentialManager using AWS KMS
// envelope encryption (config.LoadDefaultConfig + static credential
// provider to build the client).
type KMSCredentialManager struct {
	client *kms.Client
	store  Store
	keyID  string
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewKMSCredentialManager builds a KMSCredentialManager from Config.
func NewKMSCredentialManager(ctx context.Context, cfg Config, store Store, logger *zap.Logger) (*KMSCredentialManager, error) {
	if cfg.KeyID == "" {
		return nil, errors.New("secrets: KMS key id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("secrets: load aws config: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &KMSCredentialManager{
		client: kms.NewFromConfig(awsCfg),
		store:  store,
		keyID:  cfg.KeyID,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}, nil
}

func cacheKey(merchantID, gatewayType string) string {
	return merchantID + ":" + gatewayType
}

// Get returns decrypted Credentials, serving from the in-process cache
// when the entry hasn't expired.
func (m *KMSCredentialManager) Get(ctx context.Context, merchantID, gatewayType string) (gateway.Credentials, error) {
	key := cacheKey(merchantID, gatewayType)

	m.mu.Lock()
	if e, ok := m.cache[key]; ok && time.Now().Before(e.expiresAt) {
		m.mu.Unlock()
		return e.creds, nil
	}
	m.mu.Unlock()

	record, err := m.store.Get(ctx, merchantID, gatewayType)
	if err != nil {
		return gateway.Credentials{}, fmt.Errorf("secrets: load record: %w", err)
	}
	if record == nil {
		return gateway.Credentials{}, gateway.NewError(gateway.ErrorValidation, "no credentials configured for gateway", false)
	}

	dataKeyOut, err := m.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          &m.keyID,
		CiphertextBlob: record.EncryptedKey,
	})
	if err != nil {
		m.logger.Error("kms decrypt failed",
			zap.String("merchantId", merchantID), zap.String("gatewayType", gatewayType), zap.Error(err))
		return gateway.Credentials{}, fmt.Errorf("secrets: kms decrypt: %w", err)
	}

	plaintext, err := aesGCMOpen(dataKeyOut.Plaintext, record.Nonce, record.CiphertextBlob)
	if err != nil {
		return gateway.Credentials{}, fmt.Errorf("secrets: unwrap credentials: %w", err)
	}

	var creds gateway.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return gateway.Credentials{}, fmt.Errorf("secrets: unmarshal credentials: %w", err)
	}

	m.mu.Lock()
	m.cache[key] = cacheEntry{creds: creds, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()

	return creds, nil
}

// Rotate drops the cached entry so the next Get re-fetches and
// re-decrypts from the store.
func (m *KMSCredentialManager) Rotate(_ context.Context, merchantID, gatewayType string) error {
	m.mu.Lock()
	delete(m.cache, cacheKey(merchantID, gatewayType))
	m.mu.Unlock()
	return nil
}

// Seal encrypts plaintext credentials for at-rest storage: it requests a
// fresh data key from KMS, AEAD-seals the plaintext with it, and returns
// the ciphertext alongside the KMS-wrapped key — the inverse of Get's
// decrypt path, used by provisioning flows that write EncryptedRecord rows.
func (m *KMSCredentialManager) Seal(ctx context.Context, creds gateway.Credentials) (*EncryptedRecord, error) {
	dataKeyOut, err := m.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   &m.keyID,
		KeySpec: kmstypes.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("secrets: generate data key: %w", err)
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("secrets: marshal credentials: %w", err)
	}

	nonce, ciphertext, err := aesGCMSeal(dataKeyOut.Plaintext, plaintext)
	if err != nil {
		return nil, fmt.Errorf("secrets: seal credentials: %w", err)
	}

	return &EncryptedRecord{
		CiphertextBlob: ciphertext,
		EncryptedKey:   dataKeyOut.CiphertextBlob,
		Nonce:          nonce,
	}, nil
}

// EncryptBytes seals arbitrary plaintext (e.g. a bank account number) the
// same way Seal protects gateway credentials, returning a JSON-serialized
// EncryptedRecord suitable for a single opaque at-rest column. Used by the
// bank account handler so the full account number never lands on disk
// outside this envelope.
func (m *KMSCredentialManager) EncryptBytes(ctx context.Context, plaintext []byte) ([]byte, error) {
	dataKeyOut, err := m.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   &m.keyID,
		KeySpec: kmstypes.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("secrets: generate data key: %w", err)
	}

	nonce, ciphertext, err := aesGCMSeal(dataKeyOut.Plaintext, plaintext)
	if err != nil {
		return nil, fmt.Errorf("secrets: seal bytes: %w", err)
	}

	return json.Marshal(EncryptedRecord{
		CiphertextBlob: ciphertext,
		EncryptedKey:   dataKeyOut.CiphertextBlob,
		Nonce:          nonce,
	})
}

// DecryptBytes reverses EncryptBytes.
func (m *KMSCredentialManager) DecryptBytes(ctx context.Context, encoded []byte) ([]byte, error) {
	var record EncryptedRecord
	if err := json.Unmarshal(encoded, &record); err != nil {
		return nil, fmt.Errorf("secrets: unmarshal record: %w", err)
	}

	dataKeyOut, err := m.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          &m.keyID,
		CiphertextBlob: record.EncryptedKey,
	})
	if err != nil {
		return nil, fmt.Errorf("secrets: kms decrypt: %w", err)
	}

	return aesGCMOpen(dataKeyOut.Plaintext, record.Nonce, record.CiphertextBlob)
}

func aesGCMSeal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

func aesGCMOpen(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

var _ gateway.CredentialManager = (*KMSCredentialManager)(nil)
