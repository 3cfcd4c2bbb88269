package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNetworkFilesystem is returned when a SQLite file would live on a remote
// mount. SQLite's file locking is unreliable there.
var ErrNetworkFilesystem = errors.New("sqlite database on network filesystem")

// remoteFilesystems are the filesystem names treated as network mounts,
// lower-cased.
var remoteFilesystems = []string{"afpfs", "afs", "cifs", "nfs", "nfs4", "smb2", "smbfs", "webdav"}

// Location describes where a SQLite file sits on disk.
type Location struct {
	// Path is the configured database path.
	Path string
	// Inspected is the nearest existing ancestor that was examined. The
	// file itself may not exist before the first start.
	Inspected string
	// Filesystem is the platform's name for the mount type, or a hex magic
	// number on Linux when the type is not a known network filesystem.
	Filesystem string
}

// Remote reports whether the location is on a network filesystem.
func (l Location) Remote() bool {
	fs := strings.ToLower(strings.TrimSpace(l.Filesystem))
	for _, name := range remoteFilesystems {
		if fs == name {
			return true
		}
	}
	return false
}

type fsTypeFunc func(path string) (string, error)

// InspectLocation resolves path and reports the filesystem it would be
// created on. The in-memory path has no location.
func InspectLocation(path string) (Location, error) {
	return inspectLocation(path, filesystemType)
}

func inspectLocation(path string, fsType fsTypeFunc) (Location, error) {
	loc := Location{Path: path}
	if path == "" {
		return loc, errors.New("sqlite path is empty")
	}
	if path == MemoryPath {
		return loc, nil
	}

	dir, err := existingAncestor(path)
	if err != nil {
		return loc, fmt.Errorf("resolve database path %q: %w", path, err)
	}
	loc.Inspected = dir

	if loc.Filesystem, err = fsType(dir); err != nil {
		return loc, fmt.Errorf("detect filesystem for %q: %w", dir, err)
	}
	return loc, nil
}

// ValidateSQLiteFilesystem fails with ErrNetworkFilesystem when path sits
// on a network mount.
func ValidateSQLiteFilesystem(path string) error {
	return validateLocation(path, filesystemType)
}

func validateLocation(path string, fsType fsTypeFunc) error {
	loc, err := inspectLocation(path, fsType)
	if err != nil {
		return err
	}
	if loc.Remote() {
		return fmt.Errorf("%w: %q is on %s; use a local path in DATABASE_URL or a postgres:// URL",
			ErrNetworkFilesystem, path, loc.Filesystem)
	}
	return nil
}

func existingAncestor(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(dir)
		switch {
		case err == nil:
			return dir, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing ancestor of %q", path)
		}
		dir = parent
	}
}
