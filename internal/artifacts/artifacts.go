// Package artifacts persists test artifacts such as failure screenshots.
//
// Artifacts always land in a local directory. When a bucket is configured the
// same bytes are mirrored to S3, so CI runs keep their screenshots after the
// runner is gone.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kuitang/swaglabs-e2e/internal/config"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
)

// Sink stores an artifact by file name and reports where it went.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Dir writes artifacts into a local directory, creating it on demand.
type Dir struct {
	Path string
}

// Save writes data to Path/name.
func (d Dir) Save(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir %s: %w", d.Path, err)
	}
	dest := filepath.Join(d.Path, name)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", dest, err)
	}
	return dest, nil
}

// Mirror saves locally, then uploads the same bytes to Remote. The local path
// is returned even when the upload fails.
type Mirror struct {
	Local  Dir
	Remote *Bucket
}

// Save implements Sink.
func (m Mirror) Save(ctx context.Context, name string, data []byte) (string, error) {
	dest, err := m.Local.Save(ctx, name, data)
	if err != nil {
		return "", err
	}
	if err := m.Remote.Put(ctx, name, data, contentType(name)); err != nil {
		return dest, err
	}
	obs.From(ctx).Info("artifact_mirrored", "pkg", "artifacts", "path", dest, "uri", m.Remote.URI(name))
	return dest, nil
}

// FromConfig returns the sink described by cfg.
func FromConfig(ctx context.Context, cfg *config.Config) (Sink, error) {
	local := Dir{Path: cfg.ScreenshotDir}
	if !cfg.ArtifactsEnabled() {
		return local, nil
	}
	bucket, err := NewBucket(ctx, BucketConfig{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		BucketName:      cfg.ArtifactBucket,
		Prefix:          cfg.ArtifactPrefix,
		UsePathStyle:    cfg.AWSEndpointS3 != "",
	})
	if err != nil {
		return nil, err
	}
	return Mirror{Local: local, Remote: bucket}, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
