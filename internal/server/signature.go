package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries "sha256=<hex hmac of the body>" when a secret is configured.
const SignatureHeader = "X-Factkit-Signature"

const signaturePrefix = "sha256="

// Sign returns the header value for body under secret.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// verifySignature compares in constant time. A bare hex digest is accepted too.
func verifySignature(body []byte, header, secret string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		header = signaturePrefix + header
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(Sign(body, secret))) == 1
}
