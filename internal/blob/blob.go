// Package blob provides the attachment store for avatars and photo
// messages: bytes go in under a well-known path, a retrievable URL comes
// back.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store error taxonomy.
var (
	ErrUploadFailed = errors.New("upload failed")
	ErrNotFound     = errors.New("blob not found")
)

// Store accepts bytes under a path and hands back a URL clients can fetch.
type Store interface {
	Upload(ctx context.Context, path string, data []byte) (string, error)
	DownloadURL(ctx context.Context, path string) (string, error)
}

// ProfilePicturePath returns the avatar path for a user key. The convention
// is part of the stored data layout and must not change.
func ProfilePicturePath(userKey string) string {
	return fmt.Sprintf("images/%s_profile_picture.png", userKey)
}

// MessageImagePath returns the attachment path for a photo message.
func MessageImagePath(name string) string {
	return fmt.Sprintf("messages_images/%s.png", name)
}

// DiskStore is a local-filesystem Store. Files live under baseDir and are
// served by the API's static file route under baseURL.
type DiskStore struct {
	baseDir string
	baseURL string
}

// NewDiskStore creates the base directory if needed and returns a DiskStore.
func NewDiskStore(baseDir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &DiskStore{baseDir: baseDir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload writes the bytes under path and returns the download URL.
// Overwrites are allowed: re-uploading a profile picture replaces it.
func (d *DiskStore) Upload(ctx context.Context, path string, data []byte) (string, error) {
	full, err := d.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return d.baseURL + "/" + path, nil
}

// DownloadURL returns the URL for an already-stored blob, or ErrNotFound.
func (d *DiskStore) DownloadURL(ctx context.Context, path string) (string, error) {
	full, err := d.resolve(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", ErrNotFound
	}
	return d.baseURL + "/" + path, nil
}

// resolve maps a store path onto the base directory, rejecting traversal
// outside it.
func (d *DiskStore) resolve(path string) (string, error) {
	full := filepath.Join(d.baseDir, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(d.baseDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path escapes store: %s", ErrUploadFailed, path)
	}
	return full, nil
}
