// Package credentials holds the API key chosen for one browser session.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/mhpenta/autodrip"
	"github.com/mhpenta/autodrip/provider/gemini"
)

// ErrNoCredential is returned by SelectCredential when no key was offered
// and none is configured in the environment.
var ErrNoCredential = errors.New("no API key available")

// DefaultEnvKeys are checked in order when selecting from the environment.
var DefaultEnvKeys = []string{"GEMINI_API_KEY", "API_KEY"}

// Store implements autodrip.CredentialProvider and gemini.KeySource.
type Store struct {
	mu      sync.RWMutex
	key     string
	offered string

	envFiles []string
	envKeys  []string
	lookup   func(string) (string, bool)
}

var (
	_ autodrip.CredentialProvider = (*Store)(nil)
	_ gemini.KeySource            = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithKey starts the store with a selected key.
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = strings.TrimSpace(key)
	}
}

// WithEnvFiles sets the dotenv files re-read on selection. Missing files
// are skipped.
func WithEnvFiles(files ...string) Option {
	return func(s *Store) {
		s.envFiles = files
	}
}

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(s *Store) {
		s.lookup = lookup
	}
}

// NewStore creates a Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		envFiles: []string{".env"},
		envKeys:  DefaultEnvKeys,
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasCredential reports whether a key has been selected.
func (s *Store) HasCredential(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != "", nil
}

// Offer stages a key typed by the user. It is adopted on the next
// SelectCredential.
func (s *Store) Offer(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offered = strings.TrimSpace(key)
}

// SelectCredential adopts the offered key, or else the first key found in
// the dotenv files and then the process environment.
func (s *Store) SelectCredential(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offered != "" {
		s.key, s.offered = s.offered, ""
		return nil
	}

	key, err := s.fromEnvironment()
	if err != nil {
		return err
	}
	s.key = key
	return nil
}

// APIKey returns the selected key, or "" when none is selected.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key, nil
}

func (s *Store) fromEnvironment() (string, error) {
	for _, file := range s.envFiles {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		for _, name := range s.envKeys {
			if v := strings.TrimSpace(values[name]); v != "" {
				return v, nil
			}
		}
	}

	for _, name := range s.envKeys {
		if v, ok := s.lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}

	return "", ErrNoCredential
}
