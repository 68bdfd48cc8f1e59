// Package media implements the object-store client behind the upload and
// delete-file endpoints. It talks to any S3-compatible backend (AWS or
// MinIO via a custom base endpoint) and resolves public URLs back to
// storage keys for deletion.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNotManaged is returned when a URL does not live under the configured
// public base and therefore cannot be resolved to a storage key.
var ErrNotManaged = errors.New("url is not under the media base")

// Config carries the S3 connection settings.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; set for MinIO-compatible backends
	AccessKey string
	SecretKey string
	// PublicBaseURL is the prefix under which uploaded objects are served,
	// e.g. "https://cdn.example.com". Keys are appended to it.
	PublicBaseURL string
}

// objectAPI is the slice of the S3 client the store uses; tests stub it.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store uploads and deletes media objects.
type Store struct {
	cfg    Config
	client objectAPI
	now    func() time.Time
}

// New builds a Store over a real S3 client.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media: bucket is not configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{cfg: cfg, client: client, now: time.Now}, nil
}

// storageKey builds a date-partitioned object key preserving the original
// extension.
func (s *Store) storageKey(filename string) string {
	d := s.now().UTC()
	return fmt.Sprintf("media/%d/%02d/%02d/%s%s",
		d.Year(), d.Month(), d.Day(), uuid.NewString(), strings.ToLower(path.Ext(filename)))
}

// Upload stores one object and returns its public URL.
func (s *Store) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	key := s.storageKey(filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/" + key, nil
}

// keyFromURL resolves a public URL back to its storage key.
func (s *Store) keyFromURL(fileURL string) (string, error) {
	base := strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/"
	if !strings.HasPrefix(fileURL, base) {
		return "", ErrNotManaged
	}
	key := strings.TrimPrefix(fileURL, base)
	if key == "" {
		return "", ErrNotManaged
	}
	return key, nil
}

// DeleteResult reports the outcome of a batch delete.
type DeleteResult struct {
	Deleted int
	Errors  []string
}

// Delete removes the given URLs best effort: every URL is attempted, and
// per-URL failures are collected rather than aborting the batch.
func (s *Store) Delete(ctx context.Context, fileURLs []string) DeleteResult {
	var res DeleteResult
	for _, u := range fileURLs {
		key, err := s.keyFromURL(u)
		if err != nil {
			res.Errors = append(res.Errors, u+": "+err.Error())
			continue
		}
		_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			res.Errors = append(res.Errors, u+": "+err.Error())
			continue
		}
		res.Deleted++
	}
	return res
}

// Remove adapts Delete to the store layer's MediaCleaner contract: it is
// called after a post delete and must never block or reverse it, so partial
// failure degrades to a logged warning.
func (s *Store) Remove(ctx context.Context, fileURLs []string) error {
	res := s.Delete(ctx, fileURLs)
	if len(res.Errors) > 0 {
		log.Warn().Strs("errors", res.Errors).Msg("media delete incomplete")
		return fmt.Errorf("media: %d of %d deletes failed", len(res.Errors), len(fileURLs))
	}
	return nil
}
