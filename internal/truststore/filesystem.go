package truststore

import (
	"errors"
	"io/fs"
	"os"
)

// FileSystem abstracts the file operations the trust-store flow performs,
// so tests can substitute an in-memory implementation.
type FileSystem interface {
	FileExists(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, content []byte, permissions fs.FileMode) error
	EnsureDirectory(path string, permissions fs.FileMode) error
}

// OperatingSystemFileSystem implements FileSystem against the host.
type OperatingSystemFileSystem struct{}

// NewOperatingSystemFileSystem constructs an OperatingSystemFileSystem.
func NewOperatingSystemFileSystem() OperatingSystemFileSystem {
	return OperatingSystemFileSystem{}
}

// FileExists reports whether a regular file exists at path.
func (fileSystem OperatingSystemFileSystem) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// ReadFile returns the contents of the file at path.
func (fileSystem OperatingSystemFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes content to path with the given permissions.
func (fileSystem OperatingSystemFileSystem) WriteFile(path string, content []byte, permissions fs.FileMode) error {
	return os.WriteFile(path, content, permissions)
}

// EnsureDirectory creates the directory at path if it does not exist.
func (fileSystem OperatingSystemFileSystem) EnsureDirectory(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}
