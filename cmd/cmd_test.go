// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
	"github.com/xkilldash9x/vibeloop/internal/llmclient"
	"github.com/xkilldash9x/vibeloop/internal/llmutil"
	"github.com/xkilldash9x/vibeloop/internal/service"
)

// capturingFactory records the configuration it was asked to build from.
type capturingFactory struct {
	cfg config.Interface
}

var errStopBeforeRun = errors.New("stop before run")

func (f *capturingFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*service.Components, error) {
	f.cfg = cfg
	return nil, errStopBeforeRun
}

func execute(t *testing.T, factory service.ComponentFactory, args ...string) (string, error) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("VIBELOOP_LLM_API_KEY", "")

	root := newRootCommand(viper.New(), factory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, &capturingFactory{}, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, &capturingFactory{}, "version")
	require.NoError(t, err)
	assert.Equal(t, "vibeloop "+Version+"\n", out)
}

func TestTargetsCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vision_raw_1-abc.txt")
	require.NoError(t, os.WriteFile(path, []byte(llmclient.SimulatedVisionResponse), 0o644))

	out, err := execute(t, &capturingFactory{}, "targets", path)
	require.NoError(t, err)
	assert.Equal(t, "test-app/index.html\ntest-app/main.js\ntest-app/style.css\n", out)
}

func TestTargetsCmd_NoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vision_raw.txt")
	require.NoError(t, os.WriteFile(path, []byte("no json here"), 0o644))

	_, err := execute(t, &capturingFactory{}, "targets", path)
	assert.ErrorIs(t, err, llmutil.ErrNoJSON)
}

func TestRunCmd_FlagsOverrideConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	factory := &capturingFactory{}

	_, err := execute(t, factory, "run",
		"--simulate",
		"--strict-instruction",
		"--vision-model", "my-vision",
		"--code-model", "my-coder",
		"--artifacts-dir", "out",
		"http://localhost:3000",
	)
	require.ErrorIs(t, err, errStopBeforeRun)
	require.NotNil(t, factory.cfg)

	cfg := factory.cfg
	assert.True(t, cfg.Simulation().Enabled)
	assert.Equal(t, config.StrictnessStrict, cfg.Instruction().Strictness)
	assert.Equal(t, "my-vision", cfg.LLM().Vision.Model)
	assert.Equal(t, "my-coder", cfg.LLM().Code.Model)
	assert.Equal(t, "out", cfg.Artifacts().Dir)
	assert.Equal(t, "http://localhost:3000", cfg.App().URL)
}

func TestRunCmd_ConfigFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := "app:\n  url: http://127.0.0.1:8080\nsimulation:\n  enabled: true\napply:\n  subproject_roots: [web]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vibeloop.yaml"), []byte(yaml), 0o644))

	factory := &capturingFactory{}
	_, err := execute(t, factory, "run")
	require.ErrorIs(t, err, errStopBeforeRun)

	cfg := factory.cfg
	assert.Equal(t, "http://127.0.0.1:8080", cfg.App().URL)
	assert.True(t, cfg.Simulation().Enabled)
	assert.Equal(t, []string{"web"}, cfg.Apply().SubprojectRoots)
	assert.Equal(t, config.StrictnessLenient, cfg.Instruction().Strictness)
	assert.Equal(t, "ai_loop_artifacts", cfg.Artifacts().Dir)
}

func TestRunCmd_MissingCredentialFailsValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	factory := &capturingFactory{}
	_, err := execute(t, factory, "run", "http://localhost:5173")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Nil(t, factory.cfg)
}

func TestRunCmd_SimulatedEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.Mkdir("test-app", 0o755))

	out, err := execute(t, service.NewComponentFactory(nil), "run", "--simulate", "--artifacts-dir", "artifacts")
	require.NoError(t, err)

	assert.Contains(t, out, "[simulation]")
	assert.Contains(t, out, "  - Missing semicolons in JavaScript (medium): JavaScript code has missing semicolons which can cause issues\n")
	assert.Contains(t, out, "  - Todo items lack delete functionality (high): Todo list items cannot be deleted, making the app unusable\n")
	assert.Contains(t, out, "Target files: test-app/index.html, test-app/main.js, test-app/style.css")
	assert.Contains(t, out, "succeeded")

	entries, err := os.ReadDir(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	assert.Len(t, entries, 7, "every per-run artifact is written")
}

func TestRunCmd_SimulatedWithoutSubproject(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := execute(t, service.NewComponentFactory(nil), "run", "--simulate", "--artifacts-dir", "artifacts")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")

	entries, err := os.ReadDir(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	assert.Len(t, entries, 7)
}

func TestRunCmd_FailureIsStageTagged(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	// test-app exists but is a file, so the agent cannot be started inside it.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-app"), nil, 0o644))
	out, err := execute(t, service.NewComponentFactory(nil), "run", "--simulate")
	require.Error(t, err)
	assert.True(t, schemas.IsKind(err, schemas.KindApply))
	assert.Contains(t, err.Error(), "apply stage: ApplyError")
	assert.Contains(t, out, "failed at the apply stage")
}

func TestDoctor(t *testing.T) {
	probes := doctorProbes{
		lookPath: func(name string) (string, error) {
			if name == "aider" || name == "chromium" {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		version: func(ctx context.Context, binary string) (string, error) { return "aider 0.86.1", nil },
		pingClient: func(ctx context.Context, cfg config.Interface, logger *zap.Logger) (string, error) {
			return "Hello from vibeloop!", nil
		},
	}

	cfg := config.NewDefaultConfig()
	cfg.LLMCfg.APIKey = "sk-abcdefghijkl"
	var out bytes.Buffer
	failed := runDoctor(context.Background(), &out, cfg, probes, false, zap.NewNop())
	assert.Equal(t, 0, failed, out.String())
	assert.Contains(t, out.String(), "sk-a...kl")
	assert.Contains(t, out.String(), "aider 0.86.1")
	assert.Contains(t, out.String(), "/usr/bin/chromium")
	assert.Contains(t, out.String(), `replied "Hello from vibeloop!"`)

	cfg.LLMCfg.APIKey = ""
	probes.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	out.Reset()
	failed = runDoctor(context.Background(), &out, cfg, probes, false, zap.NewNop())
	assert.Equal(t, 4, failed, out.String())
	assert.Contains(t, out.String(), "aider not found on PATH")
}

func TestDoctorCmd_ExpandsHomePaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	exe := filepath.Join(home, "chrome")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	v := viper.New()
	config.SetDefaults(v)
	v.Set("llm.api_key", "sk-abcdefghijkl")
	v.Set("apply.agent", "~/bin/aider")
	v.Set("browser.exec_path", "~/chrome")

	var looked []string
	probes := doctorProbes{
		lookPath: func(name string) (string, error) {
			looked = append(looked, name)
			return name, nil
		},
		version: func(ctx context.Context, binary string) (string, error) { return "aider 0.86.1", nil },
	}

	doctor := newDoctorCmd(v, probes)
	var out bytes.Buffer
	doctor.SetOut(&out)
	doctor.SetArgs([]string{"--offline"})
	require.NoError(t, doctor.ExecuteContext(context.Background()), out.String())

	assert.Equal(t, []string{filepath.Join(home, "bin", "aider")}, looked)
	assert.Contains(t, out.String(), exe)
	assert.NotContains(t, out.String(), "FAIL")
}
