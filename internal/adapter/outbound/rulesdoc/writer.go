// Package rulesdoc persists a compiled rules document (C7's output) to
// disk: the canonical YAML artifact plus its `.lock` SHA-256 lockfile,
// written atomically and guarded by a cross-process file lock. The
// write sequence is adapted from the teacher's state-file store: mutex,
// then flock, then backup-then-atomic-rename.
package rulesdoc

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/policyproof/policyproof/internal/domain/compile"
)

// Writer persists compile.Result values to an artifact path plus its
// companion ".lock" file.
type Writer struct {
	artifactPath string
	mu           sync.Mutex
	logger       *slog.Logger
}

// NewWriter builds a Writer for the given artifact path. The lockfile
// path is derived as artifactPath + ".lock".
func NewWriter(artifactPath string, logger *slog.Logger) *Writer {
	return &Writer{artifactPath: artifactPath, logger: logger}
}

// LockfilePath returns the companion lockfile path for this writer's
// artifact.
func (w *Writer) LockfilePath() string {
	return w.artifactPath + ".lock"
}

// Write persists result's canonical YAML and SHA-256 hash.
//
// The write sequence, mirroring the teacher's FileStateStore.Save:
//  1. Acquire in-process mutex.
//  2. Acquire flock on artifactPath+".writelock".
//  3. Back up the current artifact (if any) to artifactPath+".bak".
//  4. Atomic write-tmp-fsync-rename of the canonical YAML to
//     artifactPath.
//  5. Atomic write-tmp-fsync-rename of the hex SHA-256 to
//     artifactPath+".lock".
//  6. Release flock, then mutex.
func (w *Writer) Write(result compile.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	lockPath := w.artifactPath + ".writelock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open write lock: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	if current, readErr := os.ReadFile(w.artifactPath); readErr == nil {
		if writeErr := os.WriteFile(w.artifactPath+".bak", current, 0600); writeErr != nil && w.logger != nil {
			w.logger.Warn("failed to back up previous artifact", "error", writeErr)
		}
	}

	if err := writeAtomic(w.artifactPath, result.CanonicalYAML); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := writeAtomic(w.LockfilePath(), []byte(result.SHA256+"\n")); err != nil {
		return fmt.Errorf("write lockfile: %w", err)
	}

	if w.logger != nil {
		w.logger.Debug("rules document written", "path", w.artifactPath, "sha256", result.SHA256)
	}
	return nil
}

// writeAtomic writes data to path via a temp-file-then-rename sequence,
// fsyncing before the rename so a crash never leaves a half-written
// artifact at path.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
