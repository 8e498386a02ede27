package ioutils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	invalidCharsRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDotsRe = regexp.MustCompile(`\.+$`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// WriteFileAtomic writes to path through a temporary file in the same
// directory, so a failed export never leaves a truncated file behind.
//
// The write callback receives the temporary file. The directory is created
// if needed and the final file has mode 0644.
//
// Example:
//
//	err := WriteFileAtomic(ctx, "/exports/bandcamp-purchases-2024-05-01.csv", func(w io.Writer) error {
//	    return exporter.Write(w, rows)
//	})
func WriteFileAtomic(ctx context.Context, path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// WriteFile writes data to a file, creating it if necessary.
//
// The file is created with mode 0644. If the file already exists,
// it is truncated before writing.
func WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Leading and trailing whitespace → removed
//
// Example:
//
//	SanitizeFileName("Band: Live 1/2")     // Returns "Band_ Live 1_2"
//	SanitizeFileName("Record...")          // Returns "Record"
//	SanitizeFileName("Name   with  spaces") // Returns "Name with spaces"
func SanitizeFileName(name string) string {
	name = invalidCharsRe.ReplaceAllString(name, "_")
	name = trailingDotsRe.ReplaceAllString(name, "")
	name = whitespaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// CoverFileName builds "<artist> - <title> [<item-id>].<ext>" for a cover image.
//
// The item ID keeps two releases with the same name apart.
func CoverFileName(displayName, itemID, ext string) string {
	base := SanitizeFileName(displayName)
	if base == "" {
		base = "cover"
	}
	if itemID != "" {
		base = fmt.Sprintf("%s [%s]", base, SanitizeFileName(itemID))
	}
	return base + "." + strings.TrimPrefix(ext, ".")
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
