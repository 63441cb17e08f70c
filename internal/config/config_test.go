package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var configEnvKeys = []string{
	"SWAGLABS_URL",
	"SWAGLABS_TEST_DATA",
	"SWAGLABS_SCREENSHOT_DIR",
	"SWAGLABS_DRIVER",
	"SWAGLABS_WAIT_TIMEOUT",
	"SWAGLABS_WINDOW",
	"SWAGLABS_ARTIFACT_BUCKET",
	"SWAGLABS_ARTIFACT_PREFIX",
	"AWS_ENDPOINT_URL_S3",
	"AWS_REGION",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"HEADLESS",
	"STOREFRONT_ADDR",
	"STOREFRONT_LOGIN_RPS",
	"STOREFRONT_LOGIN_BURST",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func validTestConfig() Config {
	return Config{
		AppURL:               DefaultAppURL,
		TestDataPath:         DefaultTestDataPath,
		ScreenshotDir:        DefaultScreenshotDir,
		Driver:               DriverPlaywright,
		Headless:             true,
		WaitTimeout:          DefaultWaitTimeout,
		WindowWidth:          1920,
		WindowHeight:         1080,
		StorefrontAddr:       ":8080",
		StorefrontLoginRPS:   5,
		StorefrontLoginBurst: 10,
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(Flags{})
	if err != nil {
		t.Fatalf("Load with empty env failed: %v", err)
	}
	if cfg.AppURL != "https://www.saucedemo.com/" {
		t.Fatalf("AppURL = %q", cfg.AppURL)
	}
	if cfg.TestDataPath != "test_data/test_data.json" {
		t.Fatalf("TestDataPath = %q", cfg.TestDataPath)
	}
	if cfg.ScreenshotDir != "screenshots" {
		t.Fatalf("ScreenshotDir = %q", cfg.ScreenshotDir)
	}
	if cfg.WaitTimeout != 10*time.Second {
		t.Fatalf("WaitTimeout = %s", cfg.WaitTimeout)
	}
	if cfg.Driver != DriverPlaywright || !cfg.Headless {
		t.Fatalf("Driver/Headless = %q/%t", cfg.Driver, cfg.Headless)
	}
	if cfg.WindowWidth != 1920 || cfg.WindowHeight != 1080 {
		t.Fatalf("window = %dx%d", cfg.WindowWidth, cfg.WindowHeight)
	}
	if cfg.ArtifactsEnabled() {
		t.Fatal("artifact mirror should be off without a bucket")
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SWAGLABS_URL", "https://staging.example.com/")
	t.Setenv("SWAGLABS_DRIVER", "playwright")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f, err := ParseFlags(fs, []string{"-url", "http://127.0.0.1:9999/", "-driver", "ROD", "-headed"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AppURL != "http://127.0.0.1:9999/" {
		t.Fatalf("flag did not override SWAGLABS_URL: %q", cfg.AppURL)
	}
	if cfg.Driver != DriverRod {
		t.Fatalf("driver flag not normalized: %q", cfg.Driver)
	}
	if cfg.Headless {
		t.Fatal("-headed should disable headless mode")
	}
}

func TestLoad_CollectsEveryProblem(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SWAGLABS_URL", "not a url")
	t.Setenv("SWAGLABS_DRIVER", "selenium")
	t.Setenv("SWAGLABS_WINDOW", "wide")

	_, err := Load(Flags{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, expected := range []string{"SWAGLABS_URL", "SWAGLABS_DRIVER", "SWAGLABS_WINDOW"} {
		if !strings.Contains(msg, expected) {
			t.Fatalf("expected validation error to mention %q, got: %v", expected, err)
		}
	}
}

func TestValidate_ArtifactCredentialsMustBePaired(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.ArtifactBucket = "e2e-artifacts"
	cfg.AWSAccessKeyID = "AKIA"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "AWS_SECRET_ACCESS_KEY") {
		t.Fatalf("expected paired-credentials error, got %v", err)
	}

	cfg.AWSSecretAccessKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func testParseWindow_Roundtrip(t *rapid.T) {
	w := rapid.IntRange(1, 7680).Draw(t, "w")
	h := rapid.IntRange(1, 4320).Draw(t, "h")
	sep := rapid.SampledFrom([]string{"x", "X"}).Draw(t, "sep")

	gotW, gotH, err := ParseWindow(fmt.Sprintf(" %d%s%d ", w, sep, h))
	if err != nil {
		t.Fatalf("ParseWindow failed: %v", err)
	}
	if gotW != w || gotH != h {
		t.Fatalf("ParseWindow = %dx%d, want %dx%d", gotW, gotH, w, h)
	}
}

func TestParseWindow_Roundtrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testParseWindow_Roundtrip)
}

func testValidate_RejectsNonPositiveWait(t *rapid.T) {
	cfg := validTestConfig()
	cfg.WaitTimeout = time.Duration(rapid.Int64Range(-int64(time.Hour), 0).Draw(t, "wait"))
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SWAGLABS_WAIT_TIMEOUT") {
		t.Fatalf("expected wait-timeout validation error, got %v", err)
	}
}

func TestValidate_RejectsNonPositiveWait(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsNonPositiveWait)
}

func TestMustLoad_ReturnsValidConfig(t *testing.T) {
	clearConfigEnv(t)

	cfg := MustLoad(Flags{DataPath: "../../test_data/test_data.json"})
	if cfg.TestDataPath != "../../test_data/test_data.json" {
		t.Fatalf("TestDataPath = %q", cfg.TestDataPath)
	}
	if cfg.AppURL != DefaultAppURL {
		t.Fatalf("AppURL = %q, want %q", cfg.AppURL, DefaultAppURL)
	}
}

func TestMustLoad_PanicsListingProblems(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SWAGLABS_DRIVER", "selenium")

	defer func() {
		r := recover()
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, "SWAGLABS_DRIVER") {
			t.Fatalf("expected panic naming SWAGLABS_DRIVER, got %v", r)
		}
	}()
	MustLoad(Flags{})
	t.Fatal("MustLoad returned on invalid configuration")
}
