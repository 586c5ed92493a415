package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NetworkFSError reports a SQLite path that lives on a network filesystem,
// where SQLite's file locking cannot be relied on.
type NetworkFSError struct {
	Path   string
	FSType string
}

func (e *NetworkFSError) Error() string {
	return fmt.Sprintf("database path %q is on network filesystem %q; SQLite requires a local filesystem for reliable locking. "+
		"Point state.path at local disk or use state.driver: postgres", e.Path, e.FSType)
}

var networkFSTypes = map[string]bool{
	"9p":     true,
	"afpfs":  true,
	"afs":    true,
	"ceph":   true,
	"cifs":   true,
	"nfs":    true,
	"smb2":   true,
	"smbfs":  true,
	"webdav": true,
}

// fsTypeFunc names the filesystem holding path.
type fsTypeFunc func(path string) (string, error)

// CheckSQLitePath returns a *NetworkFSError when path, or its nearest
// existing parent, is on a network filesystem. Other failures are returned
// wrapped.
func CheckSQLitePath(path string) error {
	return checkSQLitePath(path, filesystemType)
}

func checkSQLitePath(path string, fsType fsTypeFunc) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("sqlite path is empty")
	}

	existing, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}

	kind, err := fsType(existing)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}
	if networkFSTypes[strings.ToLower(strings.TrimSpace(kind))] {
		return &NetworkFSError{Path: path, FSType: kind}
	}
	return nil
}

// existingAncestor walks up from path to the first entry that exists, so
// the check works before the database directory is created.
func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(p)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		p = parent
	}
}
