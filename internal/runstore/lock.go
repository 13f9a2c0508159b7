package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	lockDirName   = ".ingest.lock"
	lockOwnerFile = "owner.json"
)

// Lock marks a directory as owned by one running process.
type Lock struct {
	fs      afero.Fs
	lockDir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireLock(fsys afero.Fs, dir string) (Lock, error) {
	target := strings.TrimSpace(dir)
	if target == "" {
		return Lock{}, fmt.Errorf("lock directory is required")
	}
	if err := Mkdir(fsys, target); err != nil {
		return Lock{}, err
	}

	lockDir := filepath.Join(target, lockDirName)
	if err := fsys.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			ownerPath := filepath.Join(lockDir, lockOwnerFile)
			var owner lockOwner
			if readErr := ReadJSON(fsys, ownerPath, &owner); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return Lock{}, fmt.Errorf(
					"directory is locked: %s (pid=%d created_at=%s host=%s)",
					target, owner.PID, owner.CreatedAt, owner.Hostname,
				)
			}
			return Lock{}, fmt.Errorf("directory is locked: %s", target)
		}
		return Lock{}, fmt.Errorf("acquire lock for %s: %w", target, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	ownerPath := filepath.Join(lockDir, lockOwnerFile)
	if err := WriteJSON(fsys, ownerPath, owner); err != nil {
		_ = fsys.RemoveAll(lockDir)
		return Lock{}, fmt.Errorf("write lock owner for %s: %w", target, err)
	}

	return Lock{fs: fsys, lockDir: lockDir}, nil
}

// LockHolder reports whether dir is currently locked and, when the owner
// file is readable, by whom.
func LockHolder(fsys afero.Fs, dir string) (bool, string) {
	lockDir := filepath.Join(strings.TrimSpace(dir), lockDirName)
	if ok, _ := afero.DirExists(fsys, lockDir); !ok {
		return false, ""
	}
	var owner lockOwner
	if err := ReadJSON(fsys, filepath.Join(lockDir, lockOwnerFile), &owner); err != nil || owner.PID <= 0 {
		return true, "unknown owner"
	}
	return true, fmt.Sprintf("pid=%d created_at=%s host=%s", owner.PID, owner.CreatedAt, owner.Hostname)
}

func (l Lock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" || l.fs == nil {
		return nil
	}
	_ = l.fs.Remove(filepath.Join(l.lockDir, lockOwnerFile))
	if err := l.fs.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
