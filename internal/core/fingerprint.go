package core

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// maxSubjectLen bounds the subject portion of a fingerprint so that
// per-message counters and dates in subjects do not defeat caching
const maxSubjectLen = 50

// SenderDomain extracts the domain part of an address, or returns the
// address unchanged when it has no @
func SenderDomain(from string) string {
	if at := strings.LastIndex(from, "@"); at >= 0 {
		return strings.ToLower(strings.Trim(from[at+1:], ">"))
	}
	return strings.ToLower(from)
}

// Fingerprint derives the deterministic cache key for a message from its
// sender domain and normalized subject. Collisions mean "same kind of
// message", not identity.
func Fingerprint(from, subject string) string {
	normalized := strings.ToLower(strings.TrimSpace(subject))
	if len(normalized) > maxSubjectLen {
		normalized = normalized[:maxSubjectLen]
	}
	sum := md5.Sum([]byte(SenderDomain(from) + ":" + normalized))
	return hex.EncodeToString(sum[:])
}
