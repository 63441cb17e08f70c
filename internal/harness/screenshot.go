package harness

import (
	"context"
	"strings"
	"time"

	"github.com/kuitang/swaglabs-e2e/internal/artifacts"
	"github.com/kuitang/swaglabs-e2e/internal/obs"
)

// TimestampLayout is the screenshot file-name timestamp, to the second.
const TimestampLayout = "2006-01-02_15-04-05"

const screenshotTimeout = 10 * time.Second

// ScreenshotName returns "<test>_<timestamp>.png" with path separators in the
// test name flattened to "_".
func ScreenshotName(test string, at time.Time) string {
	flat := strings.NewReplacer("/", "_", `\`, "_").Replace(test)
	return flat + "_" + at.Format(TimestampLayout) + ".png"
}

// ScreenshotOnFailure captures the failing test's browser into sink. Tests
// without a session are skipped. Its own errors are logged, never returned.
func ScreenshotOnFailure(sink artifacts.Sink) Listener {
	return ListenerFunc(func(ctx context.Context, o Outcome, lookup Lookup) {
		if !o.Failed {
			return
		}
		d, ok := lookup(o.Test)
		if !ok {
			return
		}
		log := obs.From(ctx).With("pkg", "harness")

		ctx, cancel := context.WithTimeout(ctx, screenshotTimeout)
		defer cancel()
		png, err := d.Screenshot(ctx)
		if err != nil {
			log.Warn("screenshot_failed", "error", err)
			return
		}
		dest, err := sink.Save(ctx, ScreenshotName(o.Test, o.At), png)
		if err != nil {
			log.Warn("screenshot_save_failed", "path", dest, "error", err)
			if dest == "" {
				return
			}
		}
		log.Info("screenshot_saved", "path", dest)
	})
}
