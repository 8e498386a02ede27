// Package ioutils provides file system and image processing utilities for
// exports and cover artwork.
//
// # File Operations
//
//	// Write an export without leaving partial files behind
//	err := ioutils.WriteFileAtomic(ctx, path, func(w io.Writer) error { ... })
//
//	// Name a cover after its release
//	name := ioutils.CoverFileName(row.DisplayName(), row.ItemID, "jpg")
//
// # Filename Sanitization
//
//	safe := ioutils.SanitizeFileName("Band: Live 1/2") // Returns "Band_ Live 1_2"
//
// # Image Processing
//
// The ImageService resizes and re-encodes downloaded cover art:
//
//	svc := ioutils.NewImageService()
//	out, err := svc.ProcessCover(ctx, data, ioutils.CoverOptions{Resize: true, MaxSize: 500})
package ioutils
