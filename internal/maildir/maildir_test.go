package maildir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScaffoldCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	if err := Scaffold(root, "alice"); err != nil {
		t.Fatalf("Scaffold() error = %v", err)
	}

	for _, sub := range []string{"new", "cur", "tmp"} {
		info, err := os.Stat(filepath.Join(root, "alice", sub))
		if err != nil {
			t.Fatalf("expected %s to exist: %v", sub, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", sub)
		}
	}
}

func TestEnumerateMovesNewIntoCurWithSeenSuffix(t *testing.T) {
	root := t.TempDir()
	if err := Scaffold(root, "alice"); err != nil {
		t.Fatalf("Scaffold() error = %v", err)
	}

	newDir := filepath.Join(root, "alice", "new")
	writeFile(t, filepath.Join(newDir, "msg1"), "hello")
	writeFile(t, filepath.Join(newDir, "msg2"), "world!")

	mails, err := Enumerate(root, "alice")
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(mails) != 2 {
		t.Fatalf("expected 2 mails, got %d", len(mails))
	}

	for _, m := range mails {
		if !hasSeenSuffix(m.UID) {
			t.Errorf("uid %q missing seen suffix", m.UID)
		}
	}

	remaining, err := os.ReadDir(newDir)
	if err != nil {
		t.Fatalf("reading new/: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected new/ to be empty after enumerate, found %d entries", len(remaining))
	}
}

func TestEnumerateIsIdempotentOnEmptyNew(t *testing.T) {
	root := t.TempDir()
	if err := Scaffold(root, "alice"); err != nil {
		t.Fatalf("Scaffold() error = %v", err)
	}

	mails, err := Enumerate(root, "alice")
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(mails) != 0 {
		t.Errorf("expected no mails, got %d", len(mails))
	}
}

func TestRemoveDeletesCurFile(t *testing.T) {
	root := t.TempDir()
	if err := Scaffold(root, "alice"); err != nil {
		t.Fatalf("Scaffold() error = %v", err)
	}
	writeFile(t, filepath.Join(root, "alice", "new", "msg1"), "hi")

	mails, err := Enumerate(root, "alice")
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(mails) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mails))
	}

	if err := Remove(root, "alice", mails[0].UID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(Path(root, "alice", mails[0].UID)); !os.IsNotExist(err) {
		t.Errorf("expected file to be removed, stat err = %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func hasSeenSuffix(uid string) bool {
	return len(uid) >= len(SeenSuffix) && uid[len(uid)-len(SeenSuffix):] == SeenSuffix
}
