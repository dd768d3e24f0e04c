// internal/artifacts/store.go
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrExists is returned when a stage tries to write an artifact twice.
var ErrExists = errors.New("artifact already written")

// Store hands out per-run artifact paths inside a single directory and writes
// files exactly once. It never looks at what it stores.
type Store struct {
	dir    string
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewStore creates the artifact directory if needed. Paths are absolute so
// they survive the apply stage changing the working directory.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("artifact directory must not be empty")
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve artifact directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create artifact directory %q: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logger.Named("artifacts"),
		now:    time.Now,
		newID:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] },
	}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// NewRun allocates the paths for one run. The key is the start second plus a
// random suffix; the second alone collides when two runs start together.
func (s *Store) NewRun() *schemas.RunArtifacts {
	ts := s.now().Unix()
	key := fmt.Sprintf("%d-%s", ts, s.newID())
	path := func(prefix, ext string) string {
		return filepath.Join(s.dir, prefix+"_"+key+ext)
	}

	run := &schemas.RunArtifacts{
		Timestamp:        ts,
		Key:              key,
		ScreenshotPath:   path("shot", ".png"),
		LogsPath:         path("logs", ".txt"),
		VisionPromptPath: path("vision_prompt", ".txt"),
		VisionRawPath:    path("vision_raw", ".txt"),
		InstructionPath:  path("instruction", ".txt"),
		AgentOutputPath:  path("agent", ".log"),
		SummaryPath:      path("summary", ".json"),
	}
	s.logger.Debug("Allocated run artifacts.", zap.String("run", key))
	return run
}

// Write creates path and writes data to it. Artifacts are immutable once
// written, so an existing file is an error rather than an overwrite.
func (s *Store) Write(path string, data []byte) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close artifact %s: %w", path, err)
	}
	s.logger.Debug("Artifact written.", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// Create opens a new artifact for streaming writes. It fails with ErrExists
// when the file is already there.
func Create(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
		return nil, fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	return f, nil
}

// WriteText is Write for text artifacts.
func (s *Store) WriteText(path, text string) error {
	return s.Write(path, []byte(text))
}

// WriteSummary persists the run summary next to the other artifacts.
func (s *Store) WriteSummary(summary *schemas.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	return s.Write(summary.Artifacts.SummaryPath, append(data, '\n'))
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (*schemas.RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var summary schemas.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode run summary %s: %w", path, err)
	}
	return &summary, nil
}
