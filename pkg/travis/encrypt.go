package travis

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
)

type keyPair struct {
	PublicKey   string `json:"public_key"`
	Fingerprint string `json:"fingerprint"`
}

// PublicKey returns the PEM encoded public key of a repository. A key pair is
// generated when the repository has none yet.
func (c *Client) PublicKey(ctx context.Context, slug string) (string, error) {
	repo, err := c.Repo(ctx, slug)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("/repo/%d/key_pair/generated", repo.ID)
	resource := "key pair of " + slug

	var key keyPair
	_, err = c.do(ctx, http.MethodGet, path, nil, &key, resource)
	if err != nil {
		if !IsNotFound(err) {
			return "", err
		}
		if _, err := c.do(ctx, http.MethodPost, path, nil, &key, resource); err != nil {
			return "", err
		}
	}
	if key.PublicKey == "" {
		return "", &APIError{StatusCode: http.StatusOK, Resource: resource, Message: "empty public key"}
	}
	return key.PublicKey, nil
}

// Encrypt encrypts value with the public key of a repository, the format
// expected for secure values in .travis.yml.
func (c *Client) Encrypt(ctx context.Context, slug, value string) (string, error) {
	key, err := c.PublicKey(ctx, slug)
	if err != nil {
		return "", err
	}
	return EncryptWithKey(key, value)
}

// EncryptWithKey encrypts value with a PEM encoded RSA public key using
// PKCS #1 v1.5 padding and returns it base64 encoded.
func EncryptWithKey(publicKey, value string) (string, error) {
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(value))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// parsePublicKey accepts both PKIX ("PUBLIC KEY") and PKCS #1
// ("RSA PUBLIC KEY") blocks.
func parsePublicKey(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, errors.New("public key is not PEM encoded")
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, not RSA", parsed)
	}
	return key, nil
}
