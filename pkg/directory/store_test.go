package directory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/staffchat/pkg/directory"
	"github.com/NicolasHaas/staffchat/pkg/model"
)

var storeUsers = []model.UserRecord{
	{Username: "alice", PasswordHash: "argon2id$00$11", FullName: "Alice Kovalenko", Department: "Engineering", Position: "Developer"},
	{Username: "bob", PasswordHash: "argon2id$22$33", FullName: "Bob Shevchenko", Department: "Sales", Position: "Manager"},
}

// withStores runs a test against every UserStore implementation.
func withStores(t *testing.T, fn func(t *testing.T, st directory.UserStore)) {
	t.Helper()

	t.Run("file", func(t *testing.T) {
		st := directory.NewFileStore(filepath.Join(t.TempDir(), "users.db"))
		t.Cleanup(func() { _ = st.Close() })
		fn(t, st)
	})

	t.Run("sqlite", func(t *testing.T) {
		st, err := directory.NewSQLiteStore(filepath.Join(t.TempDir(), "users.sqlite"))
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		fn(t, st)
	})

	t.Run("memory", func(t *testing.T) {
		fn(t, directory.NewMemoryStore())
	})
}

func TestStoreRoundTrip(t *testing.T) {
	withStores(t, func(t *testing.T, st directory.UserStore) {
		initial, err := st.LoadAll()
		if err != nil {
			t.Fatalf("LoadAll(empty): %v", err)
		}
		if len(initial) != 0 {
			t.Fatalf("LoadAll(empty): got %d users", len(initial))
		}

		if err := st.SaveAll(storeUsers); err != nil {
			t.Fatalf("SaveAll: %v", err)
		}
		got, err := st.LoadAll()
		if err != nil {
			t.Fatalf("LoadAll: %v", err)
		}
		if diff := cmp.Diff(storeUsers, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}

		// A later save fully replaces the previous snapshot.
		if err := st.SaveAll(storeUsers[:1]); err != nil {
			t.Fatalf("SaveAll(replace): %v", err)
		}
		got, err = st.LoadAll()
		if err != nil {
			t.Fatalf("LoadAll(replace): %v", err)
		}
		if diff := cmp.Diff(storeUsers[:1], got); diff != "" {
			t.Errorf("replace mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFileStoreFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	st := directory.NewFileStore(path)

	if err := st.SaveAll(storeUsers); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "alice|argon2id$00$11|Alice Kovalenko|Engineering|Developer\n" +
		"bob|argon2id$22$33|Bob Shevchenko|Sales|Manager\n"
	if string(data) != want {
		t.Errorf("file contents:\n%s\nwant:\n%s", data, want)
	}
}

func TestFileStoreSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	content := "alice|h|Alice|Eng|Dev\n" +
		"garbage line\n" +
		"bob|h|Bob|Sales|Manager\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := directory.NewFileStore(path).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 2 || got[0].Username != "alice" || got[1].Username != "bob" {
		t.Errorf("LoadAll: got %+v, want alice and bob", got)
	}
}
