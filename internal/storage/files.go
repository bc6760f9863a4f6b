// Package storage keeps attachment blobs on the local filesystem under a
// single uploads directory. Database rows reference blobs by stored name.
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxUploadSize = 5 << 20 // 5MB

// Accepted upload types, by extension and declared MIME type.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
	".zip":  true,
}

var allowedMimeTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":      true,
	"application/zip": true,
	"application/x-zip-compressed": true,
}

var baseDir string

func Init(dir string) error {
	if dir == "" {
		return errors.New("uploads directory is not set")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	baseDir = dir
	return nil
}

// Allowed reports whether a file with the given original name and declared
// MIME type may be stored. The MIME check is advisory (clients can lie);
// the extension check is the gate.
func Allowed(originalName, mimeType string) bool {
	ext := strings.ToLower(filepath.Ext(originalName))

	if !allowedExtensions[ext] {
		return false
	}

	if mimeType == "" {
		return true
	}

	// Strip parameters like "; charset=utf-8".
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	return allowedMimeTypes[strings.ToLower(mimeType)]
}

// StoredName returns a unique on-disk name preserving the original extension.
func StoredName(originalName string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
}

func PathFor(storedName string) string {
	return filepath.Join(baseDir, filepath.Base(storedName))
}

func Exists(storedName string) bool {
	info, err := os.Stat(PathFor(storedName))
	return err == nil && !info.IsDir()
}

// Remove deletes a blob. A missing blob is not an error.
func Remove(storedName string) error {
	err := os.Remove(PathFor(storedName))

	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
