package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// DefaultTransformation is the bandwidth-reduced derivative requested before AI detection.
const DefaultTransformation = "w_1024,c_limit,q_auto,f_jpg"

const destroyNotFound = "not found"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Asset describes an object stored on Cloudinary.
type Asset struct {
	URL         string
	PublicID    string
	Format      string
	Bytes       int
	Width       int
	Height      int
	Overwritten bool
}

// PutOptions controls how an asset is written.
type PutOptions struct {
	// Overwrite replaces any existing asset with the same public id and
	// invalidates its CDN copies.
	Overwrite bool
}

// Service stores and removes assets on Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Put uploads the reader under the given public id, relative to the configured folder.
func (s *Service) Put(ctx context.Context, publicID string, reader io.Reader, opts PutOptions) (Asset, error) {
	fullID := s.qualify(publicID)

	params := uploader.UploadParams{
		PublicID:       fullID,
		ResourceType:   "auto",
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(opts.Overwrite),
	}
	if opts.Overwrite {
		params.Invalidate = api.Bool(true)
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to upload asset: %w", err)
	}
	if result == nil {
		return Asset{}, errors.New("failed to upload asset: empty response")
	}
	if result.Error.Message != "" {
		return Asset{}, fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Bool("overwritten", result.Overwritten).
		Msg("asset stored on cloudinary")

	return Asset{
		URL:         result.SecureURL,
		PublicID:    result.PublicID,
		Format:      result.Format,
		Bytes:       result.Bytes,
		Width:       result.Width,
		Height:      result.Height,
		Overwritten: result.Overwritten,
	}, nil
}

// Destroy removes the asset. It reports false when nothing existed under the id.
func (s *Service) Destroy(ctx context.Context, publicID string) (bool, error) {
	fullID := s.qualify(publicID)

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   fullID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete asset: %w", err)
	}
	if result == nil {
		return false, errors.New("failed to delete asset: empty response")
	}
	if result.Error.Message != "" {
		return false, fmt.Errorf("failed to delete asset: %s", result.Error.Message)
	}

	found := result.Result != destroyNotFound
	s.logger.Info().Str("public_id", fullID).Bool("found", found).Msg("asset deleted from cloudinary")

	return found, nil
}

// qualify places a public id under the configured folder unless it is already there.
func (s *Service) qualify(publicID string) string {
	publicID = strings.Trim(publicID, "/")
	if s.folder == "" || publicID == s.folder || strings.HasPrefix(publicID, s.folder+"/") {
		return publicID
	}
	return JoinPublicID(s.folder, publicID)
}

// TransformURL returns the bandwidth-reduced derivative of a delivery URL.
func (s *Service) TransformURL(url string) string {
	return TransformURL(url, DefaultTransformation)
}

// TransformURL inserts a transformation segment after "/upload/" in a
// Cloudinary delivery URL. URLs from other hosts are returned unchanged.
func TransformURL(url, transformation string) string {
	const marker = "/upload/"
	idx := strings.Index(url, marker)
	if idx < 0 || transformation == "" || !strings.Contains(url, "res.cloudinary.com") {
		return url
	}

	rest := url[idx+len(marker):]
	if strings.HasPrefix(rest, transformation+"/") {
		return url
	}

	return url[:idx+len(marker)] + transformation + "/" + rest
}

// JoinPublicID joins path segments into a Cloudinary public id.
func JoinPublicID(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, "/")
}
