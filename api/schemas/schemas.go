package schemas

import "time"

// RunArtifacts locates every file one run writes. Paths are allocated up front
// by the artifact store; a stage fills the file it owns exactly once.
type RunArtifacts struct {
	// Timestamp is the run start in seconds since the epoch.
	Timestamp int64 `json:"timestamp"`
	// Key widens Timestamp so two runs started in the same second stay apart.
	Key string `json:"key"`

	ScreenshotPath   string `json:"screenshot_path"`
	LogsPath         string `json:"logs_path"`
	VisionPromptPath string `json:"vision_prompt_path"`
	VisionRawPath    string `json:"vision_raw_path"`
	InstructionPath  string `json:"instruction_path"`
	AgentOutputPath  string `json:"agent_output_path"`
	SummaryPath      string `json:"summary_path"`
}

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// IssueSummary is the one line view of an issue the operator sees at the end.
type IssueSummary struct {
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
	Evidence string   `json:"evidence"`
}

// RunSummary reports what one run did. On failure it still carries whatever
// the stages before the failing one produced.
type RunSummary struct {
	Key        string    `json:"key"`
	Timestamp  int64     `json:"timestamp"`
	URL        string    `json:"url"`
	Simulated  bool      `json:"simulated"`
	Status     RunStatus `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	FailedStage Stage     `json:"failed_stage,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`

	CompletedStages []Stage `json:"completed_stages"`

	IssueCount int              `json:"issue_count"`
	Severities map[Severity]int `json:"severities,omitempty"`
	Issues     []IssueSummary   `json:"issues,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	Files      []string         `json:"files"`

	InstructionWarnings []string `json:"instruction_warnings,omitempty"`

	Agent       string `json:"agent,omitempty"`
	AgentModel  string `json:"agent_model,omitempty"`
	WorkDir     string `json:"work_dir,omitempty"`
	ExitCode    *int   `json:"exit_code,omitempty"`
	PreApplyRev string `json:"pre_apply_rev,omitempty"`

	Artifacts RunArtifacts `json:"artifacts"`
}

// Succeeded reports whether every stage completed.
func (s *RunSummary) Succeeded() bool { return s.Status == RunSucceeded }
