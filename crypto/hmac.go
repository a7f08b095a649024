package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignaturePrefix is the scheme prefix GitHub-style webhook signatures use
// in the X-Hub-Signature-256 header.
const SignaturePrefix = "sha256="

// ErrInvalidSignature is returned when a presented signature does not match
// the computed HMAC, or is malformed.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// SignHMAC computes hex(HMAC-SHA256(secret, body)), unprefixed.
func SignHMAC(secret, body []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// SignHMACHeader computes the full X-Hub-Signature-256 header value.
func SignHMACHeader(secret, body []byte) string {
	return SignaturePrefix + SignHMAC(secret, body)
}

// VerifyHMACSignature checks a presented "sha256=<hex>" header value against
// secret and body using a constant-time comparison, so a timing side
// channel can't be used to recover the signature byte by byte.
func VerifyHMACSignature(secret, body []byte, header string) error {
	hexDigest, ok := strings.CutPrefix(header, SignaturePrefix)
	if !ok {
		return ErrInvalidSignature
	}
	presented, err := hex.DecodeString(hexDigest)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(presented, expected) {
		return ErrInvalidSignature
	}
	return nil
}
