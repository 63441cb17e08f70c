// Command storefront serves the fake Swag Labs shop for local runs of the suite.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kuitang/swaglabs-e2e/internal/config"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
	"github.com/kuitang/swaglabs-e2e/internal/ratelimit"
	"github.com/kuitang/swaglabs-e2e/internal/storefront"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	obs.Init()
	log := obs.Pkg("storefront")

	flags, err := config.ParseFlags(flag.NewFlagSet("storefront", flag.ContinueOnError), args)
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s, err := storefront.New(storefront.Config{
		LoginRate: ratelimit.Config{
			RPS:     cfg.StorefrontLoginRPS,
			Burst:   cfg.StorefrontLoginBurst,
			IdleTTL: ratelimit.DefaultConfig.IdleTTL,
		},
		Registry: reg,
	})
	if err != nil {
		log.Error("storefront_init_failed", "error", err)
		return 2
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.StorefrontAddr)
	if err != nil {
		log.Error("listen_failed", "addr", cfg.StorefrontAddr, "error", err)
		return 2
	}
	log.Info("storefront_listening", "addr", ln.Addr().String())

	if err := storefront.Serve(ctx, ln, s.Handler()); err != nil {
		log.Error("storefront_stopped", "error", err)
		return 1
	}
	log.Info("storefront_shutdown")
	return 0
}
