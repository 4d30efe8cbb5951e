// Package backup keeps a user-chosen file in sync with the card collection.
package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	ErrNoTarget           = errors.New("backup target is not set")
	ErrPermissionRequired = errors.New("permission to write the backup target is required")
)

// Target is where the autosaver writes the encoded collection.
type Target interface {
	Name() string
	CheckPermission() error
	Write(data []byte) error
}

type FileTarget struct {
	path string
}

func NewFileTarget(path string) (*FileTarget, error) {
	if path == "" {
		return nil, ErrNoTarget
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &FileTarget{path: abs}, nil
}

func (target *FileTarget) Name() string {
	return target.path
}

func (target *FileTarget) Path() string {
	return target.path
}

// CheckPermission verifies the file (or its directory, for a new file) is writable
// without changing its content.
func (target *FileTarget) CheckPermission() error {
	f, err := os.OpenFile(target.path, os.O_WRONLY, 0)
	if err == nil {
		return f.Close()
	}
	if errors.Is(err, fs.ErrPermission) {
		return ErrPermissionRequired
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// файла еще нет - проверяем каталог
	probe, err := os.CreateTemp(filepath.Dir(target.path), ".giftcards-*")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return ErrPermissionRequired
		}
		return err
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// Write makes a single attempt.
func (target *FileTarget) Write(data []byte) error {
	err := os.WriteFile(target.path, data, 0o600)
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionRequired, err)
	}
	return err
}

func (target *FileTarget) Read() ([]byte, error) {
	return os.ReadFile(target.path)
}
