// Package upload stores user-supplied videos in temporary files.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mediaqa/internal/core"
)

// AllowedExtensions lists the accepted video extensions, without the dot.
var AllowedExtensions = []string{"mp4", "mov", "avi"}

var mimeTypes = map[string]string{
	"mp4": "video/mp4",
	"mov": "video/quicktime",
	"avi": "video/x-msvideo",
}

// File is a video saved to a temporary file for the duration of one request.
type File struct {
	Path         string
	OriginalName string
	// Extension is lower case without the leading dot
	Extension string
	Size      int64
	MIMEType  string
}

// Extension returns the normalized extension of name.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Allowed reports whether name has a supported video extension.
func Allowed(name string) bool {
	_, ok := mimeTypes[Extension(name)]
	return ok
}

// MIMEType returns the MIME type for a supported extension, with or without the dot.
func MIMEType(ext string) string {
	return mimeTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// Save copies r into a new temporary file in dir (os.TempDir when empty),
// keeping the original extension. maxBytes <= 0 disables the size limit.
func Save(dir, name string, r io.Reader, maxBytes int64) (*File, error) {
	base := filepath.Base(name)
	ext := Extension(base)
	if base == "." || base == string(filepath.Separator) || !Allowed(base) {
		return nil, core.NewUserInputError(
			fmt.Sprintf("unsupported file type %q: allowed types are %s", base, strings.Join(AllowedExtensions, ", ")), nil)
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, "video-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	f := &File{
		Path:         tmp.Name(),
		OriginalName: base,
		Extension:    ext,
		MIMEType:     mimeTypes[ext],
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = f.Remove()
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	switch {
	case n == 0:
		_ = f.Remove()
		return nil, core.NewUserInputError("uploaded file is empty", nil)
	case maxBytes > 0 && n > maxBytes:
		_ = f.Remove()
		return nil, core.NewUserInputError(fmt.Sprintf("uploaded file exceeds %d bytes", maxBytes), nil)
	}
	f.Size = n
	return f, nil
}

// Remove deletes the temporary file. Removing an already-deleted file is not an error.
func (f *File) Remove() error {
	if f == nil || f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return nil
}
