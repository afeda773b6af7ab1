package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned when image storage credentials are missing.
var ErrNotConfigured = errors.New("image storage not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// PublicBaseURL is prepended to object keys to build browsable URLs.
	// Defaults to <Endpoint>/<Bucket> when empty.
	PublicBaseURL string
}

// Store uploads box photos to S3-compatible object storage. An
// unconfigured Store rejects uploads with ErrNotConfigured so the rest
// of the server keeps working without image support.
type Store struct {
	cfg    S3Config
	client s3Client
}

// NewStore creates an image store. Missing bucket or credentials leave
// it unconfigured.
func NewStore(cfg S3Config) *Store {
	s := &Store{cfg: cfg}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" {
		s.client = newS3Client(cfg)
	}
	return s
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured returns true when uploads can be performed.
func (s *Store) Configured() bool {
	return s.client != nil
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
}

// Upload stores an image under the owner's prefix and returns its public
// URL. The object key embeds a fresh UUID so repeated uploads of the
// same filename never collide.
func (s *Store) Upload(ctx context.Context, ownerID, filename string, body io.Reader) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := contentTypes[ext]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	key := fmt.Sprintf("images/%s/%s%s", ownerID, uuid.NewString(), ext)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	return s.publicURL(key), nil
}

// Delete removes an object by its public URL. Unknown URLs are ignored
// so that deleting a box with an externally hosted image never fails.
func (s *Store) Delete(ctx context.Context, url string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	base := s.publicURL("")
	key, found := strings.CutPrefix(url, base)
	if !found || key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

func (s *Store) publicURL(key string) string {
	base := s.cfg.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("%s/%s", strings.TrimSuffix(s.cfg.Endpoint, "/"), s.cfg.Bucket)
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}
