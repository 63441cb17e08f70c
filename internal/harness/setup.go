package harness

import (
	"context"

	"github.com/kuitang/swaglabs-e2e/internal/artifacts"
	"github.com/kuitang/swaglabs-e2e/internal/browser"
	"github.com/kuitang/swaglabs-e2e/internal/config"
	"github.com/kuitang/swaglabs-e2e/internal/users"
)

// Setup prepares a test binary before its first test: it loads the
// credentials at cfg.TestDataPath, builds a Harness for the configured
// backend, and registers ScreenshotOnFailure writing to the configured sink.
// Credential errors keep their DataLoad code so TestMain can exit with
// errs.ExitCode.
func Setup(ctx context.Context, cfg *config.Config) (*Harness, []users.Credential, error) {
	factory, err := browser.FactoryFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	return setup(ctx, cfg, factory)
}

func setup(ctx context.Context, cfg *config.Config, factory browser.Factory) (*Harness, []users.Credential, error) {
	creds, err := users.Load(cfg.TestDataPath)
	if err != nil {
		return nil, nil, err
	}
	sink, err := artifacts.FromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	h := New(factory, optionsFor(cfg), cfg.WaitTimeout)
	h.Use(ScreenshotOnFailure(sink))
	return h, creds, nil
}
