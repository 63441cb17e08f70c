// Package config provides centralized configuration for the Swag Labs suite.
// It loads configuration from environment variables and CLI flags, validates
// every field, and provides defaults that target the public demo site.
//
// Environment variables are read by both `go test` and the binaries; CLI flags
// (registered by ParseFlags) only exist for the binaries and override the env.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAppURL        = "https://www.saucedemo.com/"
	DefaultTestDataPath  = "test_data/test_data.json"
	DefaultScreenshotDir = "screenshots"
	DefaultWaitTimeout   = 10 * time.Second
	DefaultWindow        = "1920x1080"

	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)

// Config holds all suite configuration.
type Config struct {
	// Target application
	AppURL string

	// Inputs and outputs
	TestDataPath  string
	ScreenshotDir string

	// Browser session
	Driver       string        // playwright | rod
	Headless     bool          // HEADLESS=false shows the window
	WaitTimeout  time.Duration // explicit wait window for page objects
	WindowWidth  int
	WindowHeight int

	// Screenshot mirror (optional; disabled when ArtifactBucket is empty)
	ArtifactBucket     string // SWAGLABS_ARTIFACT_BUCKET
	ArtifactPrefix     string // SWAGLABS_ARTIFACT_PREFIX
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY

	// Fake storefront server
	StorefrontAddr       string
	StorefrontLoginRPS   float64
	StorefrontLoginBurst int
}

// Flags are the CLI overrides shared by the binaries.
type Flags struct {
	URL           string
	Driver        string
	DataPath      string
	ScreenshotDir string
	Addr          string
	Headed        bool
	Serve         bool
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags registers the shared flags on fs and parses args.
func ParseFlags(fs *flag.FlagSet, args []string) (Flags, error) {
	var f Flags
	fs.StringVar(&f.URL, "url", "", "Application URL (overrides SWAGLABS_URL)")
	fs.StringVar(&f.Driver, "driver", "", "Browser backend: playwright or rod (overrides SWAGLABS_DRIVER)")
	fs.StringVar(&f.DataPath, "data", "", "Credential file (overrides SWAGLABS_TEST_DATA)")
	fs.StringVar(&f.ScreenshotDir, "screenshots", "", "Failure screenshot directory (overrides SWAGLABS_SCREENSHOT_DIR)")
	fs.StringVar(&f.Addr, "addr", "", "Listen address for the storefront (overrides STOREFRONT_ADDR)")
	fs.BoolVar(&f.Headed, "headed", false, "Show the browser window")
	fs.BoolVar(&f.Serve, "serve", false, "Host the fake storefront in-process and test against it")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Load reads the environment, applies flag overrides and validates the result.
func Load(f Flags) (*Config, error) {
	cfg := &Config{}

	cfg.AppURL = getEnvOrDefault("SWAGLABS_URL", DefaultAppURL)
	cfg.TestDataPath = getEnvOrDefault("SWAGLABS_TEST_DATA", DefaultTestDataPath)
	cfg.ScreenshotDir = getEnvOrDefault("SWAGLABS_SCREENSHOT_DIR", DefaultScreenshotDir)

	cfg.Driver = strings.ToLower(getEnvOrDefault("SWAGLABS_DRIVER", DriverPlaywright))
	cfg.Headless = parseBoolOrDefault("HEADLESS", true)
	cfg.WaitTimeout = parseDurationOrDefault("SWAGLABS_WAIT_TIMEOUT", DefaultWaitTimeout)

	var windowErr error
	cfg.WindowWidth, cfg.WindowHeight, windowErr = ParseWindow(getEnvOrDefault("SWAGLABS_WINDOW", DefaultWindow))

	cfg.ArtifactBucket = strings.TrimSpace(os.Getenv("SWAGLABS_ARTIFACT_BUCKET"))
	cfg.ArtifactPrefix = strings.Trim(getEnvOrDefault("SWAGLABS_ARTIFACT_PREFIX", "screenshots"), "/")
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", "us-east-1")
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))

	cfg.StorefrontAddr = getEnvOrDefault("STOREFRONT_ADDR", ":8080")
	cfg.StorefrontLoginRPS = parseFloat64OrDefault("STOREFRONT_LOGIN_RPS", 5)
	cfg.StorefrontLoginBurst = parseIntOrDefault("STOREFRONT_LOGIN_BURST", 10)

	// CLI flag values
	if f.URL != "" {
		cfg.AppURL = f.URL
	}
	if f.Driver != "" {
		cfg.Driver = strings.ToLower(f.Driver)
	}
	if f.DataPath != "" {
		cfg.TestDataPath = f.DataPath
	}
	if f.ScreenshotDir != "" {
		cfg.ScreenshotDir = f.ScreenshotDir
	}
	if f.Addr != "" {
		cfg.StorefrontAddr = f.Addr
	}
	if f.Headed {
		cfg.Headless = false
	}

	err := cfg.Validate()
	if windowErr != nil {
		verr, _ := err.(*ValidationError)
		if verr == nil {
			verr = &ValidationError{}
		}
		verr.Errors = append(verr.Errors, windowErr.Error())
		return nil, verr
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.AppURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("SWAGLABS_URL must be an absolute http(s) URL, got %q", c.AppURL))
	}
	if strings.TrimSpace(c.TestDataPath) == "" {
		errs = append(errs, "SWAGLABS_TEST_DATA must not be empty")
	}
	if strings.TrimSpace(c.ScreenshotDir) == "" {
		errs = append(errs, "SWAGLABS_SCREENSHOT_DIR must not be empty")
	}
	switch c.Driver {
	case DriverPlaywright, DriverRod:
	default:
		errs = append(errs, fmt.Sprintf("SWAGLABS_DRIVER must be %q or %q, got %q", DriverPlaywright, DriverRod, c.Driver))
	}
	if c.WaitTimeout <= 0 {
		errs = append(errs, "SWAGLABS_WAIT_TIMEOUT must be positive")
	}

	// Artifact mirror: the bucket switches it on, credentials come from the
	// default AWS chain unless both keys are given.
	if c.ArtifactBucket != "" && (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
		errs = append(errs, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}

	if c.StorefrontLoginRPS <= 0 {
		errs = append(errs, "STOREFRONT_LOGIN_RPS must be positive")
	}
	if c.StorefrontLoginBurst <= 0 {
		errs = append(errs, "STOREFRONT_LOGIN_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ArtifactsEnabled reports whether failure screenshots are mirrored to S3.
func (c *Config) ArtifactsEnabled() bool {
	return c.ArtifactBucket != ""
}

// PrintSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "  Target:      %s\n", c.AppURL)
	fmt.Fprintf(os.Stderr, "  Driver:      %s (headless=%t, %dx%d)\n", c.Driver, c.Headless, c.WindowWidth, c.WindowHeight)
	fmt.Fprintf(os.Stderr, "  Wait:        %s\n", c.WaitTimeout)
	fmt.Fprintf(os.Stderr, "  Users:       %s\n", c.TestDataPath)
	fmt.Fprintf(os.Stderr, "  Screenshots: %s\n", c.ScreenshotDir)
	if c.ArtifactsEnabled() {
		fmt.Fprintf(os.Stderr, "  Mirror:      s3://%s/%s\n", c.ArtifactBucket, c.ArtifactPrefix)
	}
	fmt.Fprintln(os.Stderr, "")
}

// ParseWindow parses a WIDTHxHEIGHT window size.
func ParseWindow(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("SWAGLABS_WINDOW must look like 1920x1080, got %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("SWAGLABS_WINDOW width must be a positive integer, got %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("SWAGLABS_WINDOW height must be a positive integer, got %q", s)
	}
	return width, height, nil
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoad loads configuration and panics if validation fails.
func MustLoad(f Flags) *Config {
	cfg, err := Load(f)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
