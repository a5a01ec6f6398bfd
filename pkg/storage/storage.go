// Package storage persists uploaded images (event covers, avatars) in S3 or Cloudinary.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/eblago/backend/pkg/apperr"
)

const (
	// MaxImageSize is the maximum accepted image upload (5MB).
	MaxImageSize = 5 * 1024 * 1024
	// FolderEvents holds event cover images.
	FolderEvents = "events"
	// FolderAvatars holds user avatars.
	FolderAvatars = "avatars"
)

// Allowed image MIME types and extensions.
var (
	AllowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}
	AllowedImageExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".gif":  "image/gif",
	}
)

// ErrNotConfigured is returned when an upload arrives but no image store is set up.
var ErrNotConfigured = apperr.Unavailable("image storage is not configured")

// File is an image upload ready to be stored.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageStore saves images and deletes them by their public URL.
type ImageStore interface {
	Save(ctx context.Context, folder string, f File) (url string, err error)
	Delete(ctx context.Context, url string) error
}

// ValidateImage checks size and type of an upload.
func ValidateImage(f File) error {
	if f.Size > MaxImageSize {
		return apperr.Validationf("image must be at most %d MB", MaxImageSize/(1024*1024))
	}
	ext := strings.ToLower(path.Ext(f.Name))
	if f.ContentType != "" {
		if _, ok := AllowedImageTypes[strings.ToLower(f.ContentType)]; ok {
			return nil
		}
	}
	if _, ok := AllowedImageExtensions[ext]; ok {
		return nil
	}
	return apperr.Validation("image must be a jpeg, png, webp or gif file")
}

// ContentTypeForFilename returns the MIME type for an image filename extension.
func ContentTypeForFilename(filename string) string {
	if ct, ok := AllowedImageExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ImageKey returns a fresh object key: {folder}/{uuid}{ext}.
func ImageKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := AllowedImageExtensions[ext]; !ok {
		ext = ""
	}
	return path.Join(folder, uuid.New().String()+ext)
}

// FromMultipart opens an uploaded form file. The caller closes the returned closer.
func FromMultipart(fh *multipart.FileHeader) (File, io.Closer, error) {
	src, err := fh.Open()
	if err != nil {
		return File{}, nil, fmt.Errorf("open upload: %w", err)
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = ContentTypeForFilename(fh.Filename)
	}
	f := File{Name: fh.Filename, ContentType: ct, Size: fh.Size, Body: src}
	if err := ValidateImage(f); err != nil {
		_ = src.Close()
		return File{}, nil, err
	}
	return f, src, nil
}
