package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainBehaviorSpec = "csc/behavior-spec/v1"
	DomainJournal      = "csc/journal/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash computes a stable identity for a behavior spec. Rule order is
// significant: two specs with the same rules in a different order hash
// differently because declaration order decides which rule fires.
func SpecHash(spec BehaviorSpec) (string, error) {
	rules := make([]any, len(spec.Rules))
	for i, r := range spec.Rules {
		obj, err := r.canonicalObject()
		if err != nil {
			return "", fmt.Errorf("SpecHash: rule %d: %w", i, err)
		}
		rules[i] = obj
	}

	canonical, err := MarshalCanonical(map[string]any{
		"schema_version": spec.SchemaVersion,
		"rules":          rules,
	})
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBehaviorSpec, canonical), nil
}

// JournalDigest hashes an ordered decision journal. Two runs with the same
// digest produced byte-identical journals.
func JournalDigest(attempts []DecisionAttempt) (string, error) {
	h := sha256.New()
	h.Write([]byte(DomainJournal))
	h.Write([]byte{0x00})
	for i, a := range attempts {
		line, err := a.CanonicalJSON()
		if err != nil {
			return "", fmt.Errorf("JournalDigest: attempt %d: %w", i, err)
		}
		h.Write(line)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustSpecHash is like SpecHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSpecHash(spec BehaviorSpec) string {
	h, err := SpecHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}
