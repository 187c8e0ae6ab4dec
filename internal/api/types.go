package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Workflow describes a session in a transport-friendly format.
type Workflow struct {
	ID                string            `json:"id"`
	Phase             string            `json:"phase"`
	VideoURL          string            `json:"videoUrl,omitempty"`
	AudioURL          string            `json:"audioUrl,omitempty"`
	DurationSeconds   float64           `json:"durationSeconds"`
	Duration          string            `json:"duration"`
	DurationDefaulted bool              `json:"durationDefaulted"`
	Transcript        string            `json:"transcript,omitempty"`
	Translations      map[string]string `json:"translations,omitempty"`
	SynthesizedAudio  map[string]string `json:"synthesizedAudio,omitempty"`
	LipSyncJobs       map[string]Job    `json:"lipSyncJobs,omitempty"`
	CreatedAt         string            `json:"createdAt,omitempty"`
	UpdatedAt         string            `json:"updatedAt,omitempty"`
}

// WorkflowSummary is the list view of a session.
type WorkflowSummary struct {
	ID          string `json:"id"`
	Phase       string `json:"phase"`
	Duration    string `json:"duration"`
	Languages   int    `json:"languages"`
	PendingJobs int    `json:"pendingJobs"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Job is one language's lip-sync job.
type Job struct {
	Language     string `json:"language"`
	LanguageName string `json:"languageName"`
	State        string `json:"state"`
	JobID        string `json:"jobId,omitempty"`
	OutputURL    string `json:"outputUrl,omitempty"`
	Error        string `json:"error,omitempty"`
	Attempts     int    `json:"attempts"`
	SubmittedAt  string `json:"submittedAt,omitempty"`
	LastPolledAt string `json:"lastPolledAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// WorkflowResponse wraps a single session.
type WorkflowResponse struct {
	Workflow Workflow `json:"workflow"`
}

// WorkflowListResponse wraps a collection of sessions.
type WorkflowListResponse struct {
	Workflows []WorkflowSummary `json:"workflows"`
}

// IngestRequest names media already reachable by URL or store key.
type IngestRequest struct {
	URL  string `json:"url"`
	Kind string `json:"kind,omitempty"`
}

// IngestResponse reports what ingest recorded.
type IngestResponse struct {
	VideoURL        string  `json:"videoUrl,omitempty"`
	AudioURL        string  `json:"audioUrl,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
	Duration        string  `json:"duration"`
	Degraded        bool    `json:"degraded"`
	Reason          string  `json:"reason,omitempty"`
	Key             string  `json:"key,omitempty"`
}

// VoiceResponse reports a stored voice track upload.
type VoiceResponse struct {
	Language string `json:"language"`
	AudioURL string `json:"audioUrl"`
	Key      string `json:"key"`
}

// TranscriptRequest replaces the transcript with a manual edit.
type TranscriptRequest struct {
	Transcript string `json:"transcript"`
}

// TranscriptResponse carries the stored transcript.
type TranscriptResponse struct {
	Transcript string `json:"transcript"`
}

// TranslationsRequest merges manual translation edits. Keys may be codes or
// language names.
type TranslationsRequest struct {
	Translations map[string]string `json:"translations"`
}

// TranslationsResponse carries translations keyed by language code.
type TranslationsResponse struct {
	Translations map[string]string `json:"translations"`
}

// LanguagesRequest restricts a per-language stage. Empty means all
// configured languages.
type LanguagesRequest struct {
	Languages []string `json:"languages,omitempty"`
}

// SynthesisItem is one language's synthesis outcome.
type SynthesisItem struct {
	AudioURL string `json:"audioUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SynthesisResponse reports per-language synthesis results.
type SynthesisResponse struct {
	Results map[string]SynthesisItem `json:"results"`
	Skipped map[string]string        `json:"skipped,omitempty"`
	Failed  int                      `json:"failed"`
}

// LipSyncResponse reports per-language job records.
type LipSyncResponse struct {
	Jobs    map[string]Job    `json:"jobs"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// CancelResponse reports whether a poll loop was stopped.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	Kind     string `json:"kind"`
	Stage    string `json:"stage,omitempty"`
	Language string `json:"language,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Store        string             `json:"store"`
	DatabasePath string             `json:"databasePath,omitempty"`
	LockFilePath string             `json:"lockFilePath"`
	Languages    []string           `json:"languages"`
	Workflows    int                `json:"workflows"`
	ActivePolls  int                `json:"activePolls"`
	StageHealth  []StageHealth      `json:"stageHealth"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
