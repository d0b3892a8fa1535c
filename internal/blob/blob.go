// Package blob stores uploaded documents and mints short-lived signed URLs
// for reading them back. Paths follow <applicationID>/<sectionKey>/<object>.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultURLTTL is how long a signed URL stays valid.
const DefaultURLTTL = time.Hour

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidPath = errors.New("invalid object path")
	// ErrBadToken covers expired, forged and mismatched URL tokens.
	ErrBadToken = errors.New("invalid url token")
)

// Store is the document storage contract.
type Store interface {
	Put(ctx context.Context, path string, r io.Reader) (int64, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
}

// CleanPath validates a relative object path. Traversal and absolute paths
// are rejected.
func CleanPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || strings.HasPrefix(path, "/") {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrInvalidPath
		}
	}
	return path, nil
}

// Signer mints and checks per-object URL tokens. Tokens are HS256 JWTs
// bound to the object path, so a leaked URL grants exactly one object for a
// limited time.
type Signer struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
}

// NewSigner builds a signer. baseURL is the public mount of the file
// handler, typically "/files".
func NewSigner(secret []byte, baseURL string, ttl time.Duration) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("url signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &Signer{secret: secret, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl}, nil
}

// SignedURL returns a time-limited URL for the object.
func (s *Signer) SignedURL(path string) (string, error) {
	path, err := CleanPath(path)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   path,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	escaped := make([]string, 0, 4)
	for _, part := range strings.Split(path, "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return s.baseURL + "/" + strings.Join(escaped, "/") + "?token=" + token, nil
}

// Verify checks that token grants access to path.
func (s *Signer) Verify(token, path string) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrBadToken
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrBadToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject != path {
		return ErrBadToken
	}
	return nil
}
