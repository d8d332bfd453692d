// Package maildir implements the per-user Maildir lifecycle operations
// spec.md §3/§4.4/§4.7 require: directory scaffolding, the new/ -> cur/
// enumeration performed on PASS, and deletion of cur/ files during UPDATE.
package maildir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	emersionmaildir "github.com/emersion/go-maildir"
)

// MaxMails bounds the number of Mailfile entries Enumerate will return
// for a single mailbox (spec.md §4.4 "up to 4096 entries").
const MaxMails = 4096

// SeenSuffix is the Maildir "seen" flag suffix this server always applies
// to every new/ file it moves into cur/ (spec.md §4.4, §6).
const SeenSuffix = ":2,S"

// Mailfile is one message recorded in a session's mail list.
type Mailfile struct {
	UID     string
	Deleted bool
	Size    int64
}

// Scaffold creates the <root>/<user>/{new,cur,tmp} directories, mode 0700,
// using emersion/go-maildir's directory-lifecycle helper for the
// new/cur/tmp layout itself (the library's own message-naming and flag
// scheme is more general than this server's fixed ":2,S" suffix, so
// enumeration below is implemented directly rather than through it).
func Scaffold(root, user string) error {
	dir := emersionmaildir.Dir(filepath.Join(root, user))
	if err := dir.Init(); err != nil {
		return fmt.Errorf("maildir: scaffold %s: %w", user, err)
	}
	return nil
}

// Path returns the on-disk path of uid within user's cur/ directory.
func Path(root, user, uid string) string {
	return filepath.Join(root, user, "cur", uid)
}

// Enumerate performs the PASS-time mail load (spec.md §4.4 "Mail
// enumeration"): every file under new/ is renamed into cur/ with the
// ":2,S" suffix appended, then cur/ is scanned (excluding "." and "..")
// to build the ordered Mailfile list. The on-disk rename order is
// filesystem-dependent, so the result is sorted by filename for
// deterministic, reproducible message numbering across runs.
func Enumerate(root, user string) ([]Mailfile, error) {
	base := filepath.Join(root, user)
	newDir := filepath.Join(base, "new")
	curDir := filepath.Join(base, "cur")

	entries, err := os.ReadDir(newDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("maildir: reading new/: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		oldPath := filepath.Join(newDir, entry.Name())
		newName := entry.Name() + SeenSuffix
		newPath := filepath.Join(curDir, newName)
		if err := os.Rename(oldPath, newPath); err != nil {
			return nil, fmt.Errorf("maildir: moving %s to cur/: %w", entry.Name(), err)
		}
	}

	curEntries, err := os.ReadDir(curDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("maildir: reading cur/: %w", err)
	}

	names := make([]string, 0, len(curEntries))
	for _, entry := range curEntries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	if len(names) > MaxMails {
		names = names[:MaxMails]
	}

	mails := make([]Mailfile, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(curDir, name))
		if err != nil {
			return nil, fmt.Errorf("maildir: stat %s: %w", name, err)
		}
		mails = append(mails, Mailfile{UID: name, Size: info.Size()})
	}

	return mails, nil
}

// Remove deletes the on-disk file for uid from user's cur/ directory,
// called during UPDATE for every mail left marked deleted (spec.md §4.4).
func Remove(root, user, uid string) error {
	if err := os.Remove(Path(root, user, uid)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("maildir: removing %s: %w", uid, err)
	}
	return nil
}
