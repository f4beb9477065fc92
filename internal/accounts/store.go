// Package accounts persists one record per logged-in account. Each account
// owns a directory holding account.yaml and the protocol session file.
package accounts

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/danhigham/tgterm/internal/domain"
)

const recordFile = "account.yaml"

// ErrNotFound is returned for an account ID without a record.
var ErrNotFound = errors.New("account not found")

type Store struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create accounts dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}, nil
}

// NewSessionDir allocates a directory for a login that has no account yet.
// The returned key becomes the account's SessionKey once it is saved.
func (s *Store) NewSessionDir() (key, dir string, err error) {
	key = uuid.NewString()
	dir = s.SessionDir(key)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("create session dir: %w", err)
	}
	return key, dir, nil
}

func (s *Store) SessionDir(key string) string {
	return filepath.Join(s.dir, key)
}

// List returns every readable record ordered by ID. Broken records are
// logged and skipped.
func (s *Store) List() ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *Store) list() ([]domain.Account, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read accounts dir: %w", err)
	}

	var out []domain.Account
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		acc, err := s.read(e.Name())
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			s.logger.Warn("skipping account record", zap.String("key", e.Name()), zap.Error(err))
			continue
		}
		out = append(out, acc)
	}
	slices.SortFunc(out, func(a, b domain.Account) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) read(key string) (domain.Account, error) {
	data, err := os.ReadFile(filepath.Join(s.SessionDir(key), recordFile))
	if err != nil {
		return domain.Account{}, err
	}
	var acc domain.Account
	if err := yaml.Unmarshal(data, &acc); err != nil {
		return domain.Account{}, fmt.Errorf("parse %s: %w", recordFile, err)
	}
	acc.SessionKey = key
	return acc, nil
}

func (s *Store) Get(id int64) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *Store) get(id int64) (domain.Account, error) {
	all, err := s.list()
	if err != nil {
		return domain.Account{}, err
	}
	for _, acc := range all {
		if acc.ID == id {
			return acc, nil
		}
	}
	return domain.Account{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Save writes acc into the directory named by its SessionKey. A stale
// record for the same ID under another key is removed.
func (s *Store) Save(acc domain.Account) error {
	if acc.SessionKey == "" {
		return errors.New("account has no session key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, err := s.get(acc.ID); err == nil && old.SessionKey != acc.SessionKey {
		if err := os.RemoveAll(s.SessionDir(old.SessionKey)); err != nil {
			return fmt.Errorf("remove stale session: %w", err)
		}
	}
	return s.write(acc)
}

func (s *Store) write(acc domain.Account) error {
	dir := s.SessionDir(acc.SessionKey)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := yaml.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, recordFile), data, 0o600); err != nil {
		return fmt.Errorf("write account: %w", err)
	}
	return nil
}

// SetActive marks id as the active account and clears the flag on the rest.
func (s *Store) SetActive(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.list()
	if err != nil {
		return err
	}
	found := false
	for _, acc := range all {
		want := acc.ID == id
		found = found || want
		if acc.Active == want {
			continue
		}
		acc.Active = want
		if err := s.write(acc); err != nil {
			return err
		}
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// Active returns the active account, falling back to the first record.
func (s *Store) Active() (domain.Account, bool, error) {
	all, err := s.List()
	if err != nil || len(all) == 0 {
		return domain.Account{}, false, err
	}
	for _, acc := range all {
		if acc.Active {
			return acc, true, nil
		}
	}
	return all[0], true, nil
}

// Delete removes the account record together with its session file.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.get(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(s.SessionDir(acc.SessionKey)); err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	s.logger.Info("account deleted", zap.Int64("account_id", id))
	return nil
}

// Prune removes session directories that never got an account record,
// left behind by logins that were abandoned.
func (s *Store) Prune() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read accounts dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		_, err := os.Stat(filepath.Join(s.dir, e.Name(), recordFile))
		if !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		s.logger.Debug("pruned orphan session", zap.String("key", e.Name()))
	}
	return nil
}
