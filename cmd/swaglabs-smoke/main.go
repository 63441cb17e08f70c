// Command swaglabs-smoke runs the login scenario once, outside go test.
//
// It exits 0 when every user logs in, 1 when the scenario fails or times out,
// and 2 when the run could not be set up. With -serve it hosts the fake
// storefront on a loopback port and points the scenario at it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kuitang/swaglabs-e2e/internal/artifacts"
	"github.com/kuitang/swaglabs-e2e/internal/config"
	"github.com/kuitang/swaglabs-e2e/internal/errs"
	"github.com/kuitang/swaglabs-e2e/internal/harness"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
	"github.com/kuitang/swaglabs-e2e/internal/ratelimit"
	"github.com/kuitang/swaglabs-e2e/internal/scenario"
	"github.com/kuitang/swaglabs-e2e/internal/storefront"
	"github.com/kuitang/swaglabs-e2e/internal/users"
)

const testName = "TestUserCanLogin"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	obs.Init()

	flags, err := config.ParseFlags(flag.NewFlagSet("swaglabs-smoke", flag.ContinueOnError), args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = obs.WithRunID(ctx, obs.NewRunID())
	log := obs.From(ctx).With("pkg", "smoke")

	creds, err := users.Load(cfg.TestDataPath)
	if err != nil {
		log.Error("load_users_failed", "error", err)
		return errs.ExitCode(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	stopServing := func() {}
	if flags.Serve {
		serveCtx, cancel := context.WithCancel(gctx)
		stopServing = cancel
		appURL, err := hostStorefront(serveCtx, g, cfg)
		if err != nil {
			cancel()
			log.Error("storefront_start_failed", "error", err)
			return 2
		}
		cfg.AppURL = appURL
	}
	cfg.PrintSummary()

	g.Go(func() error {
		defer stopServing()
		return smoke(gctx, cfg, creds)
	})
	err = g.Wait()
	if err != nil {
		log.Error("smoke_failed", "code", errs.CodeOf(err), "error", err)
	} else {
		log.Info("smoke_passed", "users", len(creds))
	}
	return errs.ExitCode(err)
}

// hostStorefront starts the fake shop on a loopback port inside g and returns
// its URL. The server stops when ctx is canceled.
func hostStorefront(ctx context.Context, g *errgroup.Group, cfg *config.Config) (string, error) {
	s, err := storefront.New(storefront.Config{
		LoginRate: ratelimit.Config{
			RPS:     cfg.StorefrontLoginRPS,
			Burst:   cfg.StorefrontLoginBurst,
			IdleTTL: ratelimit.DefaultConfig.IdleTTL,
		},
	})
	if err != nil {
		return "", errs.Wrap(errs.Setup, "build storefront", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		s.Close()
		return "", errs.Wrap(errs.Setup, "listen for storefront", err)
	}
	g.Go(func() error {
		defer s.Close()
		return storefront.Serve(ctx, ln, s.Handler())
	})
	return "http://" + ln.Addr().String() + "/", nil
}

func smoke(ctx context.Context, cfg *config.Config, creds []users.Credential) error {
	h, err := harness.FromConfig(cfg)
	if err != nil {
		return err
	}
	sink, err := artifacts.FromConfig(ctx, cfg)
	if err != nil {
		return errs.Wrap(errs.Setup, "configure screenshot sink", err)
	}
	h.Use(harness.ScreenshotOnFailure(sink))

	ctx = obs.WithTest(ctx, testName)
	s, err := h.Acquire(ctx, testName)
	if err != nil {
		return err
	}
	runErr := scenario.UserCanLogin(ctx, s, creds, cfg.AppURL)
	if err := h.Release(context.WithoutCancel(ctx), testName, runErr != nil); err != nil {
		obs.From(ctx).Warn("release_failed", "pkg", "smoke", "error", err)
	}
	return runErr
}
