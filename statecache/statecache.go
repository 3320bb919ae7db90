// Package statecache persists serialized flow states and session tokens
// between CLI invocations, keyed by provider host and username. Items are
// stored in the OS keyring so a flow started in one process can be
// resumed in another.
package statecache

import (
	"fmt"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"

	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when nothing is cached under a key.
var ErrNotFound = errors.New("statecache: item not found")

// Store wraps a keyring with the cache's key scheme.
type Store struct {
	kr keyring.Keyring
}

// New builds a Store over an opened keyring.
func New(kr keyring.Keyring) *Store {
	return &Store{kr: kr}
}

func stateKey(host, username, flow string) string {
	return fmt.Sprintf("stagegate-state-%s-%s-%s", flow, username, host)
}

func tokenKey(host, username string) string {
	return fmt.Sprintf("stagegate-token-%s-%s", username, host)
}

func (s *Store) get(key string) ([]byte, error) {
	item, err := s.kr.Get(key)
	if err == keyring.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading from keyring")
	}
	return item.Data, nil
}

func (s *Store) put(key string, data []byte, label string) error {
	err := s.kr.Set(keyring.Item{
		Key:   key,
		Data:  data,
		Label: label,
	})
	return errors.Wrap(err, "writing to keyring")
}

func (s *Store) remove(key string) error {
	err := s.kr.Remove(key)
	if err == keyring.ErrKeyNotFound {
		return nil
	}
	return errors.Wrap(err, "removing from keyring")
}

// PutState caches a serialized flow state.
func (s *Store) PutState(host, username, flow string, blob []byte) error {
	log.Debug("caching ", flow, " state for ", username, "@", host)
	return s.put(stateKey(host, username, flow),
		blob,
		fmt.Sprintf("stagegate %s flow state for %s", flow, username))
}

// GetState retrieves a cached flow state.
func (s *Store) GetState(host, username, flow string) ([]byte, error) {
	return s.get(stateKey(host, username, flow))
}

// DeleteState drops a cached flow state. Missing entries are not an
// error.
func (s *Store) DeleteState(host, username, flow string) error {
	return s.remove(stateKey(host, username, flow))
}

// PutToken caches an exported session token. The caller must have taken
// the token out of SDK circulation first (Token.Export does).
func (s *Store) PutToken(host, username, encoded string) error {
	log.Debug("caching session token for ", username, "@", host)
	return s.put(tokenKey(host, username),
		[]byte(encoded),
		fmt.Sprintf("stagegate session token for %s", username))
}

// GetToken retrieves a cached session token encoding.
func (s *Store) GetToken(host, username string) (string, error) {
	data, err := s.get(tokenKey(host, username))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteToken drops a cached session token. Missing entries are not an
// error.
func (s *Store) DeleteToken(host, username string) error {
	return s.remove(tokenKey(host, username))
}
