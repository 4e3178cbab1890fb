package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRepresentation prefixes representation hashes. The version
// suffix changes whenever the dump format does.
const DomainRepresentation = "blockjit/representation/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RepresentationHash computes a content hash of an entry script and every
// procedure variant it reaches. Two builds of the same block graph with
// the same options hash identically.
func RepresentationHash(rep *Representation) (string, error) {
	canonical, err := MarshalCanonical(DumpRepresentation(rep))
	if err != nil {
		return "", fmt.Errorf("RepresentationHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRepresentation, canonical), nil
}
