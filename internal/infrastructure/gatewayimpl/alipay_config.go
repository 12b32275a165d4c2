package gatewayimpl

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// AlipayConfig carries the merchant-level Alipay Open Platform credentials
// one AlipayAdapter call needs: the app's signing key and Alipay's public
// key for verifying callback signatures.
type AlipayConfig struct {
	AppID           string
	PrivateKey      *rsa.PrivateKey
	AlipayPublicKey *rsa.PublicKey
	IsSandbox       bool
	SignType        string
	NotifyURL       string
}

var (
	ErrAlipayMissingAppID      = errors.New("alipay: missing app ID")
	ErrAlipayMissingPrivateKey = errors.New("alipay: missing private key")
	ErrAlipayInvalidPrivateKey = errors.New("alipay: invalid private key format")
	ErrAlipayMissingPublicKey  = errors.New("alipay: missing Alipay public key")
	ErrAlipayInvalidPublicKey  = errors.New("alipay: invalid Alipay public key format")
	ErrAlipayInvalidSignType   = errors.New("alipay: invalid sign type, must be RSA2 or RSA")
)

func (c *AlipayConfig) Validate() error {
	if c.AppID == "" {
		return ErrAlipayMissingAppID
	}
	if c.PrivateKey == nil {
		return ErrAlipayMissingPrivateKey
	}
	if c.AlipayPublicKey == nil {
		return ErrAlipayMissingPublicKey
	}
	if c.SignType == "" {
		c.SignType = "RSA2"
	}
	if c.SignType != "RSA2" && c.SignType != "RSA" {
		return ErrAlipayInvalidSignType
	}
	return nil
}

// AlipayConfigBuilder assembles an AlipayConfig from PEM material.
type AlipayConfigBuilder struct {
	config AlipayConfig
	err    error
}

func NewAlipayConfigBuilder() *AlipayConfigBuilder {
	return &AlipayConfigBuilder{config: AlipayConfig{SignType: "RSA2"}}
}

func (b *AlipayConfigBuilder) SetAppID(appID string) *AlipayConfigBuilder {
	b.config.AppID = appID
	return b
}

func (b *AlipayConfigBuilder) SetPrivateKeyFromPEM(pemStr string) *AlipayConfigBuilder {
	if b.err != nil {
		return b
	}
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		b.err = ErrAlipayInvalidPrivateKey
		return b
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			b.err = fmt.Errorf("%w: %v", ErrAlipayInvalidPrivateKey, err)
			return b
		}
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		b.err = ErrAlipayInvalidPrivateKey
		return b
	}
	b.config.PrivateKey = rsaKey
	return b
}

func (b *AlipayConfigBuilder) SetPrivateKeyFromFile(path string) *AlipayConfigBuilder {
	if b.err != nil {
		return b
	}
	data, err := os.ReadFile(path)
	if err != nil {
		b.err = fmt.Errorf("alipay: failed to read private key file: %w", err)
		return b
	}
	return b.SetPrivateKeyFromPEM(string(data))
}

func (b *AlipayConfigBuilder) SetAlipayPublicKeyFromPEM(pemStr string) *AlipayConfigBuilder {
	if b.err != nil {
		return b
	}
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		b.err = ErrAlipayInvalidPublicKey
		return b
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		b.err = fmt.Errorf("%w: %v", ErrAlipayInvalidPublicKey, err)
		return b
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		b.err = ErrAlipayInvalidPublicKey
		return b
	}
	b.config.AlipayPublicKey = rsaKey
	return b
}

func (b *AlipayConfigBuilder) SetIsSandbox(isSandbox bool) *AlipayConfigBuilder {
	b.config.IsSandbox = isSandbox
	return b
}

func (b *AlipayConfigBuilder) Build() (*AlipayConfig, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return &b.config, nil
}
