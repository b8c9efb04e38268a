package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid download token")
	ErrTokenExpired = errors.New("download token expired")
)

// Signer issues and validates signed download tokens for stored artifacts.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Sign encodes path and expiry into an opaque URL-safe token.
func (s *Signer) Sign(path string, expiry time.Time) string {
	payload := fmt.Sprintf("%s|%d", path, expiry.Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.mac([]byte(payload))
}

// Verify validates a token and returns the artifact path it grants.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidToken
	}
	if !hmac.Equal([]byte(parts[1]), []byte(s.mac(payload))) {
		return "", ErrInvalidToken
	}

	i := strings.LastIndexByte(string(payload), '|')
	if i < 0 {
		return "", ErrInvalidToken
	}
	expiry, err := strconv.ParseInt(string(payload[i+1:]), 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if s.now().Unix() > expiry {
		return "", ErrTokenExpired
	}
	return string(payload[:i]), nil
}

func (s *Signer) mac(payload []byte) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write(payload)
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}
