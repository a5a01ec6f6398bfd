package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

// CloudinaryConfig holds Cloudinary account settings.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	// Folder prefixes every upload folder, e.g. "eblago".
	Folder string
}

// Cloudinary stores images as Cloudinary assets.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
	logger *zap.Logger
}

// NewCloudinary creates a Cloudinary image store.
func NewCloudinary(cfg CloudinaryConfig, logger *zap.Logger) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	logger.Info("Cloudinary image store configured", zap.String("cloud", cfg.CloudName))
	return &Cloudinary{cld: cld, folder: cfg.Folder, logger: logger}, nil
}

// Save uploads the image into folder and returns its secure URL.
func (c *Cloudinary) Save(ctx context.Context, folder string, f File) (string, error) {
	resp, err := c.cld.Upload.Upload(ctx, f.Body, uploader.UploadParams{
		Folder: path.Join(c.folder, folder),
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload: %s", resp.Error.Message)
	}
	c.logger.Debug("image uploaded", zap.String("public_id", resp.PublicID))
	return resp.SecureURL, nil
}

// Delete destroys the asset behind url.
func (c *Cloudinary) Delete(ctx context.Context, raw string) error {
	publicID, err := PublicIDFromURL(raw)
	if err != nil {
		return err
	}
	resp, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy: %w", err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("destroy: %s", resp.Error.Message)
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL extracts the asset public id from a delivery URL:
// https://res.cloudinary.com/demo/image/upload/v1234567890/events/abc123.jpg -> events/abc123
func PublicIDFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, p := range parts {
		if p == "upload" {
			idx = i
			break
		}
	}
	if idx < 0 || idx == len(parts)-1 {
		return "", fmt.Errorf("invalid cloudinary url %q", raw)
	}
	rest := parts[idx+1:]
	if versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return "", fmt.Errorf("invalid cloudinary url %q", raw)
	}
	id := path.Join(rest...)
	return strings.TrimSuffix(id, path.Ext(id)), nil
}
