// internal/browser/simulated.go
package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
)

// SimulatedBrowser stands in for Chrome when simulation is enabled. It returns
// a blank placeholder image and a short canned console transcript.
type SimulatedBrowser struct {
	width, height int
	logger        *zap.Logger
}

var _ schemas.BrowserCapture = (*SimulatedBrowser)(nil)

// NewSimulatedBrowser creates the stand-in. Non-positive sizes fall back to a
// small image.
func NewSimulatedBrowser(width, height int, logger *zap.Logger) *SimulatedBrowser {
	if width <= 0 || height <= 0 {
		width, height = 320, 200
	}
	logger = logger.Named("simulated_browser")
	logger.Warn("Simulation mode: the screenshot is a placeholder, no browser will be launched.")
	return &SimulatedBrowser{width: width, height: height, logger: logger}
}

// Capture returns the placeholder. The url is only echoed into the logs.
func (s *SimulatedBrowser) Capture(ctx context.Context, url string) (*schemas.CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder screenshot: %w", err)
	}

	now := time.Now()
	logs := []schemas.ConsoleLog{
		{Type: "info", Timestamp: now, Text: fmt.Sprintf("simulated capture of %s", url), Source: "simulation"},
		{Type: "log", Timestamp: now, Text: "counter initialised", Source: "simulation"},
		{Type: "warning", Timestamp: now, Text: "todo items have no delete handler", Source: "simulation"},
	}
	s.logger.Info("Returning simulated capture.", zap.String("url", url))
	return &schemas.CaptureResult{Screenshot: buf.Bytes(), Logs: logs}, nil
}
