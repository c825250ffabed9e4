/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media archives finished break audio/video files to
// S3-compatible object storage once the pipeline has already written
// them to the local filesystem. The local copy stays authoritative
// for playout (internal/playout reads a local path); the archive
// upload is a best-effort mirror for durability and off-box access,
// not a second source of truth.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Archiver uploads a break's rendered files to long-term storage,
// keyed by break id and kind ("audio" or "video").
type Archiver interface {
	Archive(ctx context.Context, breakID, kind, localPath string) (string, error)
}

// Config is S3 archive configuration. An empty Bucket means archiving
// is disabled; callers should use Noop in that case.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Archiver implements Archiver against an S3-compatible bucket.
type S3Archiver struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// New builds an S3Archiver, or returns Noop if cfg.Bucket is empty. A
// HeadBucket probe runs up front purely for an early log signal — a
// missing bucket does not fail startup, since it may be created later
// or the archive path may simply go unused.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) Archiver {
	logger = logger.With().Str("component", "media_archiver").Logger()
	if cfg.Bucket == "" {
		return Noop{}
	}

	var awsCfg aws.Config
	var err error
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{URL: cfg.Endpoint, HostnameImmutable: true, SigningRegion: cfg.Region}, nil
			}
			return aws.Endpoint{}, fmt.Errorf("media: unknown endpoint requested for service %q", service)
		})
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithEndpointResolverWithOptions(resolver),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load aws config, archiving disabled")
		return Noop{}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HeadBucket(probeCtx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		logger.Warn().Err(err).Str("bucket", cfg.Bucket).Msg("s3 bucket not reachable at startup, will retry on use")
	} else {
		logger.Info().Str("bucket", cfg.Bucket).Msg("media archiver initialized")
	}

	return &S3Archiver{client: client, bucket: cfg.Bucket, logger: logger}
}

// Archive uploads localPath under key breaks/{breakID}/{kind}{ext} and
// returns the object key (not a signed URL — callers needing a URL
// derive it from bucket + key, or presign on demand).
func (a *S3Archiver) Archive(ctx context.Context, breakID, kind, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("media: open %s for archive: %w", localPath, err)
	}
	defer f.Close()

	key := fmt.Sprintf("breaks/%s/%s%s", breakID, kind, filepath.Ext(localPath))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(kind, localPath)),
		Metadata: map[string]string{
			"break-id": breakID,
			"kind":     kind,
		},
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("break_id", breakID).Str("key", key).Msg("archive upload failed")
		return "", fmt.Errorf("media: put object %s: %w", key, err)
	}
	return key, nil
}

func contentType(kind, path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	default:
		if kind == "video" {
			return "video/mp4"
		}
		return "application/octet-stream"
	}
}

// Noop is an Archiver that does nothing, used when archiving is not
// configured. Archive always succeeds with an empty key so callers
// never need to branch on whether archiving is enabled.
type Noop struct{}

// Archive is a no-op; it returns an empty key and a nil error.
func (Noop) Archive(ctx context.Context, breakID, kind, localPath string) (string, error) {
	return "", nil
}
