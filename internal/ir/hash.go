package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the algorithm to change without collisions.
const (
	DomainFilter = "relfilter/filter/v1"
	DomainModel  = "relfilter/model/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FilterID computes a content-addressed identity for a filter applied to a
// model. Compiling an already-compiled filter yields the same ID.
func FilterID(modelUID string, f Filter) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"model":  modelUID,
		"filter": f,
	})
	if err != nil {
		return "", fmt.Errorf("FilterID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFilter, canonical), nil
}

// MarshalModel returns the canonical JSON form of a model definition.
func MarshalModel(m *Model) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return MarshalCanonical(v)
}

// ModelHash computes a content-addressed identity for a model definition.
func ModelHash(m *Model) (string, error) {
	canonical, err := MarshalModel(m)
	if err != nil {
		return "", fmt.Errorf("ModelHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModel, canonical), nil
}
