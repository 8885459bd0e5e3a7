package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// shmDir is the memory-backed tmpfs preferred for plaintext staging on
// Linux. Overridable in tests.
var shmDir = "/dev/shm"

// StagingFile is a short-lived plaintext file handed to an external editor.
//
// The file lives on memory-backed storage when available and is created with
// owner-only permissions before any plaintext touches it; tightening
// permissions after writing would leave a window for another local user.
// Cleanup overwrites the contents with zero bytes before removal. That is
// best-effort hygiene, not a forensic guarantee.
type StagingFile struct {
	path string
}

// Stage creates a staging file containing content.
func Stage(content []byte) (*StagingFile, error) {
	dir := os.TempDir()
	if info, err := os.Stat(shmDir); err == nil && info.IsDir() {
		dir = shmDir
	}

	path := filepath.Join(dir, fmt.Sprintf("mindvault-%s.md", uuid.NewString()))

	// O_EXCL: fail rather than follow a pre-planted file or symlink.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close staging file: %w", err)
	}

	return &StagingFile{path: path}, nil
}

// Path returns the on-disk location to pass to the editor.
func (s *StagingFile) Path() string {
	return s.path
}

// Read returns the current contents, i.e. whatever the editor saved.
func (s *StagingFile) Read() ([]byte, error) {
	return os.ReadFile(s.path)
}

// Cleanup zero-fills the file to its current length and removes it.
// The removal happens even if the overwrite fails.
func (s *StagingFile) Cleanup() error {
	info, statErr := os.Stat(s.path)
	if statErr == nil && info.Size() > 0 {
		if f, err := os.OpenFile(s.path, os.O_WRONLY, 0o600); err == nil {
			zeros := make([]byte, info.Size())
			_, _ = f.WriteAt(zeros, 0)
			_ = f.Sync()
			f.Close()
		}
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staging file: %w", err)
	}
	return nil
}
