// Package keybackend resolves JWT signing secrets by key id, so tokens
// signed with an older key keep verifying while a new one is rolled out.
package keybackend

import (
	"fmt"
)

// MapKeyStore retrieves signing secrets from an in-memory map keyed by kid.
type MapKeyStore struct {
	keys map[string][]byte
}

// NewMapKeyStore creates a store from a kid to secret mapping.
func NewMapKeyStore(keys map[string]string) *MapKeyStore {
	m := make(map[string][]byte, len(keys))
	for kid, secret := range keys {
		m[kid] = []byte(secret)
	}
	return &MapKeyStore{keys: m}
}

// Lookup returns the secret for kid.
func (s *MapKeyStore) Lookup(kid string) ([]byte, error) {
	secret, found := s.keys[kid]
	if !found {
		return nil, fmt.Errorf("kid %q: %w", kid, ErrKeyNotFound)
	}
	return secret, nil
}

// Len reports how many keys the store holds.
func (s *MapKeyStore) Len() int {
	return len(s.keys)
}
