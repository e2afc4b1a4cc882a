// Package fsutil provides atomic file replacement.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// TmpPrefix names in-progress files next to their target.
const TmpPrefix = ".sealcheck-tmp-"

// PendingFile is a temporary file that replaces its target on Commit. Until
// then the target is untouched, so a failed run never leaves a partial file.
type PendingFile struct {
	*os.File
	target string
	perm   os.FileMode
	done   bool
}

// Create starts a pending replacement of path.
func Create(path string, perm os.FileMode) (*PendingFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), TmpPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("atomic write create tmp: %w", err)
	}
	return &PendingFile{File: tmp, target: path, perm: perm}, nil
}

// Commit fsyncs the data and renames it over the target.
func (p *PendingFile) Commit() error {
	if p.done {
		return fmt.Errorf("atomic write %s: already finished", p.target)
	}
	p.done = true
	tmpPath := p.Name()

	success := false
	defer func() {
		if !success {
			p.File.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := p.Chmod(p.perm); err != nil {
		return fmt.Errorf("atomic write chmod: %w", err)
	}
	if err := p.Sync(); err != nil {
		return fmt.Errorf("atomic write fsync: %w", err)
	}
	if err := p.File.Close(); err != nil {
		return fmt.Errorf("atomic write close: %w", err)
	}
	if err := os.Rename(tmpPath, p.target); err != nil {
		return fmt.Errorf("atomic write rename: %w", err)
	}
	if err := FsyncDir(filepath.Dir(p.target)); err != nil {
		return fmt.Errorf("atomic write fsync dir: %w", err)
	}

	success = true
	return nil
}

// Abort discards the pending data. It is a no-op after Commit.
func (p *PendingFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	p.File.Close()
	os.Remove(p.Name())
}

// AtomicWrite writes data to a temporary file, fsyncs, then renames to target path.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	p, err := Create(path, perm)
	if err != nil {
		return err
	}
	if _, err := p.Write(data); err != nil {
		p.Abort()
		return fmt.Errorf("atomic write: %w", err)
	}
	return p.Commit()
}

// FsyncDir fsyncs a directory to ensure rename visibility is durable.
func FsyncDir(dirPath string) error {
	d, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("fsync dir open: %w", err)
	}
	defer d.Close()
	return d.Sync()
}
