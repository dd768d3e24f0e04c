// internal/browser/chrome.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
)

// ChromeCapture drives a fresh headless Chrome per capture.
type ChromeCapture struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ schemas.BrowserCapture = (*ChromeCapture)(nil)

// NewChromeCapture creates a capture backed by a local Chrome install.
func NewChromeCapture(cfg config.BrowserConfig, logger *zap.Logger) *ChromeCapture {
	return &ChromeCapture{cfg: cfg, logger: logger.Named("chrome")}
}

// DefaultAllocatorOptions builds the Chrome launch flags from configuration.
// The list is explicit rather than chromedp.DefaultExecAllocatorOptions so
// that headless can be switched off.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("enable-automation", true),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}

	// Extra flags: "--name=value" or a bare boolean "--name".
	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(arg, "-")
		if arg == "" {
			continue
		}
		if key, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

// Capture loads url, waits for the network to settle and returns a full page
// screenshot together with everything the page logged from the first byte.
func (b *ChromeCapture) Capture(ctx context.Context, url string) (*schemas.CaptureResult, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, DefaultAllocatorOptions(b.cfg)...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithErrorf(b.logger.Sugar().Debugf))
	defer cancelTab()

	// Listener first, navigation second.
	collector := NewCollector(b.logger)
	collector.Attach(tabCtx)

	setup := []chromedp.Action{collector.Enable()}
	if b.cfg.ViewportWidth > 0 && b.cfg.ViewportHeight > 0 {
		setup = append(setup, chromedp.EmulateViewport(int64(b.cfg.ViewportWidth), int64(b.cfg.ViewportHeight)))
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	navCtx := tabCtx
	if b.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(tabCtx, b.cfg.NavigationTimeout)
		defer cancel()
	}

	b.logger.Debug("Navigating.", zap.String("url", url))
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if err := collector.WaitNetworkIdle(navCtx, b.cfg.NetworkIdleQuiet); err != nil {
		return nil, fmt.Errorf("page never reached network idle: %w", err)
	}

	quality := b.cfg.ScreenshotQuality
	if quality <= 0 || quality > 100 {
		quality = 100
	}
	var screenshot []byte
	if err := chromedp.Run(tabCtx, chromedp.FullScreenshot(&screenshot, quality)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	logs := collector.Logs()
	b.logger.Info("Capture complete.",
		zap.String("url", url),
		zap.Int("screenshot_bytes", len(screenshot)),
		zap.Int("console_entries", len(logs)),
	)
	return &schemas.CaptureResult{Screenshot: screenshot, Logs: logs}, nil
}
