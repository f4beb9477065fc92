package accounts_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/danhigham/tgterm/internal/accounts"
	"github.com/danhigham/tgterm/internal/domain"
)

func newStore(t *testing.T) *accounts.Store {
	t.Helper()
	s, err := accounts.NewStore(filepath.Join(t.TempDir(), "accounts"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func saveNew(t *testing.T, s *accounts.Store, acc domain.Account) domain.Account {
	t.Helper()
	key, _, err := s.NewSessionDir()
	if err != nil {
		t.Fatalf("NewSessionDir: %v", err)
	}
	acc.SessionKey = key
	if err := s.Save(acc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return acc
}

func TestStore_SaveGetList(t *testing.T) {
	s := newStore(t)
	saveNew(t, s, domain.Account{ID: 20, Phone: "+2", Username: "bob"})
	alice := saveNew(t, s, domain.Account{ID: 10, Phone: "+1", DisplayName: "Alice"})

	got, err := s.Get(10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != alice {
		t.Errorf("Get(10) = %+v, want %+v", got, alice)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].ID != 10 || all[1].ID != 20 {
		t.Errorf("List() = %+v, want ids [10 20]", all)
	}
}

func TestStore_GetUnknown(t *testing.T) {
	s := newStore(t)
	if _, err := s.Get(99); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("Get(99) error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(99); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("Delete(99) error = %v, want ErrNotFound", err)
	}
}

func TestStore_SaveRequiresKey(t *testing.T) {
	s := newStore(t)
	if err := s.Save(domain.Account{ID: 1}); err == nil {
		t.Error("Save without session key succeeded")
	}
}

func TestStore_SaveReplacesStaleSession(t *testing.T) {
	s := newStore(t)
	old := saveNew(t, s, domain.Account{ID: 1, Phone: "+1"})
	fresh := saveNew(t, s, domain.Account{ID: 1, Phone: "+1"})

	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].SessionKey != fresh.SessionKey {
		t.Errorf("List() = %+v, want only the new session", all)
	}
	if _, err := os.Stat(s.SessionDir(old.SessionKey)); !os.IsNotExist(err) {
		t.Errorf("old session dir still present: %v", err)
	}
}

func TestStore_SetActive(t *testing.T) {
	s := newStore(t)
	saveNew(t, s, domain.Account{ID: 1, Active: true})
	saveNew(t, s, domain.Account{ID: 2})

	if err := s.SetActive(2); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	active, ok, err := s.Active()
	if err != nil || !ok {
		t.Fatalf("Active() = %v, %v", ok, err)
	}
	if active.ID != 2 {
		t.Errorf("active = %d, want 2", active.ID)
	}
	if first, _ := s.Get(1); first.Active {
		t.Error("account 1 still marked active")
	}

	if err := s.SetActive(3); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("SetActive(3) error = %v, want ErrNotFound", err)
	}
}

func TestStore_ActiveFallsBackToFirst(t *testing.T) {
	s := newStore(t)
	if _, ok, err := s.Active(); ok || err != nil {
		t.Fatalf("Active() on empty store = %v, %v", ok, err)
	}

	saveNew(t, s, domain.Account{ID: 5})
	saveNew(t, s, domain.Account{ID: 3})
	acc, ok, _ := s.Active()
	if !ok || acc.ID != 3 {
		t.Errorf("Active() = %d, %v, want 3", acc.ID, ok)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newStore(t)
	acc := saveNew(t, s, domain.Account{ID: 1})
	if err := os.WriteFile(filepath.Join(s.SessionDir(acc.SessionKey), "session.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(s.SessionDir(acc.SessionKey)); !os.IsNotExist(err) {
		t.Errorf("session dir survived delete: %v", err)
	}
	if _, err := s.Get(1); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
}

func TestStore_PruneAndBrokenRecords(t *testing.T) {
	s := newStore(t)
	kept := saveNew(t, s, domain.Account{ID: 1})

	orphan, _, err := s.NewSessionDir()
	if err != nil {
		t.Fatal(err)
	}
	_, broken, err := s.NewSessionDir()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(broken, "account.yaml"), []byte("id: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].ID != 1 {
		t.Errorf("List() = %+v, want only account 1", all)
	}

	if err := s.Prune(); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if _, err := os.Stat(s.SessionDir(orphan)); !os.IsNotExist(err) {
		t.Errorf("orphan session dir survived prune: %v", err)
	}
	if _, err := os.Stat(broken); err != nil {
		t.Errorf("prune removed a dir with a record: %v", err)
	}
	if _, err := os.Stat(s.SessionDir(kept.SessionKey)); err != nil {
		t.Errorf("prune removed a saved account: %v", err)
	}
}
