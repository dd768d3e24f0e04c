// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/vibeloop/api/schemas"
	"github.com/xkilldash9x/vibeloop/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) App() config.AppConfig {
	args := m.Called()
	return args.Get(0).(config.AppConfig)
}

func (m *MockConfig) LLM() config.LLMConfig {
	args := m.Called()
	return args.Get(0).(config.LLMConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Artifacts() config.ArtifactsConfig {
	args := m.Called()
	return args.Get(0).(config.ArtifactsConfig)
}

func (m *MockConfig) Analysis() config.AnalysisConfig {
	args := m.Called()
	return args.Get(0).(config.AnalysisConfig)
}

func (m *MockConfig) Instruction() config.InstructionConfig {
	args := m.Called()
	return args.Get(0).(config.InstructionConfig)
}

func (m *MockConfig) Apply() config.ApplyConfig {
	args := m.Called()
	return args.Get(0).(config.ApplyConfig)
}

func (m *MockConfig) Simulation() config.SimulationConfig {
	args := m.Called()
	return args.Get(0).(config.SimulationConfig)
}

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

var _ schemas.LLMClient = (*MockLLMClient)(nil)

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Browser Capture Mock --

// MockBrowserCapture mocks the schemas.BrowserCapture interface.
type MockBrowserCapture struct {
	mock.Mock
}

var _ schemas.BrowserCapture = (*MockBrowserCapture)(nil)

func (m *MockBrowserCapture) Capture(ctx context.Context, url string) (*schemas.CaptureResult, error) {
	args := m.Called(ctx, url)
	var res *schemas.CaptureResult
	if r := args.Get(0); r != nil {
		res = r.(*schemas.CaptureResult)
	}
	return res, args.Error(1)
}

// -- Code Agent Mock --

// MockCodeAgent mocks the schemas.CodeAgent interface.
type MockCodeAgent struct {
	mock.Mock
}

var _ schemas.CodeAgent = (*MockCodeAgent)(nil)

func (m *MockCodeAgent) Run(ctx context.Context, req schemas.AgentRequest) (int, error) {
	args := m.Called(ctx, req)
	return args.Int(0), args.Error(1)
}

func (m *MockCodeAgent) Name() string {
	args := m.Called()
	return args.String(0)
}
