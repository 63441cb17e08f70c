package artifacts

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kuitang/swaglabs-e2e/internal/config"
)

func TestDir_CreatesDirectoryOnDemand(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "nested", "screenshots")
	d := Dir{Path: root}

	dest, err := d.Save(context.Background(), "TestX_2024-01-02_03-04-05.png", []byte("png"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if dest != filepath.Join(root, "TestX_2024-01-02_03-04-05.png") {
		t.Fatalf("unexpected destination %q", dest)
	}
	got, err := os.ReadFile(dest)
	if err != nil || string(got) != "png" {
		t.Fatalf("ReadFile = %q, %v", got, err)
	}
}

func TestBucket_PutGet(t *testing.T) {
	t.Parallel()
	b := TestBucket(t, "e2e-artifacts", "/screenshots/")
	ctx := context.Background()

	if got := b.Key("a.png"); got != "screenshots/a.png" {
		t.Fatalf("Key = %q", got)
	}
	if got := b.URI("a.png"); got != "s3://e2e-artifacts/screenshots/a.png" {
		t.Fatalf("URI = %q", got)
	}

	if err := b.Put(ctx, "a.png", []byte{1, 2, 3}, "image/png"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := b.Get(ctx, "a.png")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("Get = %v", got)
	}

	_, err = b.Get(ctx, "missing.png")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMirror_WritesBothCopies(t *testing.T) {
	t.Parallel()
	b := TestBucket(t, "e2e-artifacts", "runs")
	m := Mirror{Local: Dir{Path: t.TempDir()}, Remote: b}
	ctx := context.Background()

	dest, err := m.Save(ctx, "shot.png", []byte("pixels"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	local, err := os.ReadFile(dest)
	if err != nil || string(local) != "pixels" {
		t.Fatalf("local copy = %q, %v", local, err)
	}
	remote, err := b.Get(ctx, "shot.png")
	if err != nil || string(remote) != "pixels" {
		t.Fatalf("remote copy = %q, %v", remote, err)
	}
}

func TestFromConfig_LocalWithoutBucket(t *testing.T) {
	t.Parallel()
	sink, err := FromConfig(context.Background(), &config.Config{ScreenshotDir: "shots"})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if _, ok := sink.(Dir); !ok {
		t.Fatalf("expected Dir sink, got %T", sink)
	}
}

func TestFromConfig_MirrorWithBucket(t *testing.T) {
	t.Parallel()
	sink, err := FromConfig(context.Background(), &config.Config{
		ScreenshotDir:      "shots",
		ArtifactBucket:     "e2e-artifacts",
		ArtifactPrefix:     "screenshots",
		AWSEndpointS3:      "http://127.0.0.1:1",
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "k",
		AWSSecretAccessKey: "s",
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	m, ok := sink.(Mirror)
	if !ok {
		t.Fatalf("expected Mirror sink, got %T", sink)
	}
	if m.Remote.URI("x.png") != "s3://e2e-artifacts/screenshots/x.png" {
		t.Fatalf("URI = %q", m.Remote.URI("x.png"))
	}
}

func TestContentType(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"a.png":  "image/png",
		"a.PNG":  "image/png",
		"a.json": "application/json",
		"a.bin":  "application/octet-stream",
	}
	for name, want := range cases {
		if got := contentType(name); got != want {
			t.Fatalf("contentType(%q) = %q, want %q", name, got, want)
		}
	}
}
