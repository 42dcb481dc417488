package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPrompt   = "fuser/prompt/v1"
	DomainDecision = "fuser/decision/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PromptHash computes the content hash of an assembled prompt.
// Identical prompts hash identically regardless of Unicode composition form.
func PromptHash(prompt string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("PromptHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPrompt, canonical), nil
}

// DecisionHash computes the content hash of a decision's ordered command list.
func DecisionHash(d Decision) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{"commands": canonicalCommands(d.Commands)})
	if err != nil {
		return "", fmt.Errorf("DecisionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDecision, canonical), nil
}

// MustPromptHash is like PromptHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPromptHash(prompt string) string {
	h, err := PromptHash(prompt)
	if err != nil {
		panic(err)
	}
	return h
}
