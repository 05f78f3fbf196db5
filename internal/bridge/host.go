package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// HostStore is the file store the bridge peer writes into. Paths are
// slash-separated and relative to the site root.
type HostStore interface {
	// ValidateSetup checks that the backend is reachable and writable
	// before the peer starts accepting messages.
	ValidateSetup(ctx context.Context) error
	Put(ctx context.Context, name string, data []byte) error
}

// MemoryHost keeps files in a map. Used by the memory backend and tests.
type MemoryHost struct {
	mu    sync.Mutex
	files map[string][]byte

	// FailPut, when set, makes every Put fail with the given message.
	FailPut string
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{files: make(map[string][]byte)}
}

func (h *MemoryHost) ValidateSetup(ctx context.Context) error { return nil }

func (h *MemoryHost) Put(ctx context.Context, name string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailPut != "" {
		return fmt.Errorf("%s", h.FailPut)
	}
	h.files[name] = append([]byte(nil), data...)
	return nil
}

// File returns a stored file's content and whether it exists.
func (h *MemoryHost) File(name string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[name]
	return data, ok
}

// FileSystemHost writes the site into a local directory, typically one
// served by a web server or synced elsewhere out of band.
type FileSystemHost struct {
	root string
}

func NewFileSystemHost(root string) *FileSystemHost {
	return &FileSystemHost{root: root}
}

func (h *FileSystemHost) ValidateSetup(ctx context.Context) error {
	if h.root == "" {
		return fmt.Errorf("filesystem host root not configured")
	}
	if err := os.MkdirAll(h.root, 0755); err != nil {
		return fmt.Errorf("preparing site root %s: %w", h.root, err)
	}
	return nil
}

func (h *FileSystemHost) Put(ctx context.Context, name string, data []byte) error {
	rel, err := safeRelPath(name)
	if err != nil {
		return err
	}
	dst := filepath.Join(h.root, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	// Write-then-rename so readers never see a torn file.
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// safeRelPath rejects names that would escape the site root.
func safeRelPath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return clean, nil
}

var (
	_ HostStore = (*MemoryHost)(nil)
	_ HostStore = (*FileSystemHost)(nil)
)
