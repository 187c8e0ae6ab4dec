package api

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"dubline/internal/deps"
	"dubline/internal/language"
	"dubline/internal/services"
	"dubline/internal/stage"
	"dubline/internal/state"
	"dubline/internal/workflow"
)

// FromWorkflowState converts a stored session to its API representation.
func FromWorkflowState(ws state.WorkflowState) Workflow {
	dto := Workflow{
		ID:                ws.ID,
		Phase:             ws.Phase(),
		VideoURL:          ws.VideoURL,
		AudioURL:          ws.AudioURL,
		DurationSeconds:   ws.VideoDuration.Seconds(),
		Duration:          workflow.FormatClock(ws.VideoDuration),
		DurationDefaulted: ws.DurationDefaulted,
		Transcript:        ws.Transcript,
		Translations:      stringKeys(ws.Translations),
		SynthesizedAudio:  stringKeys(ws.SynthesizedAudio),
		CreatedAt:         formatTime(ws.CreatedAt),
		UpdatedAt:         formatTime(ws.UpdatedAt),
	}
	if len(ws.LipSyncJobs) > 0 {
		dto.LipSyncJobs = FromJobRecords(ws.LipSyncJobs)
	}
	return dto
}

// FromWorkflowStates converts sessions into list entries.
func FromWorkflowStates(list []state.WorkflowState) []WorkflowSummary {
	out := make([]WorkflowSummary, 0, len(list))
	for _, ws := range list {
		out = append(out, WorkflowSummary{
			ID:          ws.ID,
			Phase:       ws.Phase(),
			Duration:    workflow.FormatClock(ws.VideoDuration),
			Languages:   len(ws.Translations),
			PendingJobs: len(ws.PendingJobs()),
			UpdatedAt:   formatTime(ws.UpdatedAt),
		})
	}
	return out
}

// FromJobRecord converts a lip-sync job record.
func FromJobRecord(rec state.JobRecord) Job {
	dto := Job{
		Language:     string(rec.Language),
		LanguageName: rec.Language.DisplayName(),
		State:        string(rec.State),
		JobID:        rec.JobID,
		OutputURL:    rec.OutputURL,
		Error:        rec.Error,
		Attempts:     rec.Attempts,
		SubmittedAt:  formatTime(rec.SubmittedAt),
		UpdatedAt:    formatTime(rec.UpdatedAt),
	}
	if rec.LastPolledAt != nil {
		dto.LastPolledAt = formatTime(*rec.LastPolledAt)
	}
	return dto
}

// FromJobRecords converts a language-keyed record map.
func FromJobRecords(jobs map[language.Code]state.JobRecord) map[string]Job {
	out := make(map[string]Job, len(jobs))
	for code, rec := range jobs {
		out[string(code)] = FromJobRecord(rec)
	}
	return out
}

// FromIngestResult converts an ingest outcome. key is the upload's store
// key, empty for URL ingests.
func FromIngestResult(result workflow.IngestResult, key string) IngestResponse {
	return IngestResponse{
		VideoURL:        result.VideoURL,
		AudioURL:        result.AudioURL,
		DurationSeconds: result.Duration.Seconds(),
		Duration:        workflow.FormatClock(result.Duration),
		Degraded:        result.Degraded,
		Reason:          result.Reason,
		Key:             key,
	}
}

// FromSynthesisReport converts a synthesis report.
func FromSynthesisReport(report workflow.SynthesisReport) SynthesisResponse {
	out := SynthesisResponse{
		Results: make(map[string]SynthesisItem, len(report.Results)),
		Skipped: stringKeys(report.Skipped),
		Failed:  report.Failed(),
	}
	for code, res := range report.Results {
		out.Results[string(code)] = SynthesisItem{AudioURL: res.AudioURL, Error: res.Error}
	}
	return out
}

// FromLipSyncReport converts a lip-sync submission report.
func FromLipSyncReport(report workflow.LipSyncReport) LipSyncResponse {
	return LipSyncResponse{Jobs: FromJobRecords(report.Jobs), Skipped: stringKeys(report.Skipped)}
}

// FromHealth converts adapter health in the order given.
func FromHealth(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromDependencies converts binary dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// ParseLanguages resolves request language names or codes. Unknown values
// are a validation error.
func ParseLanguages(values []string) ([]language.Code, error) {
	out := make([]language.Code, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		code, err := language.Parse(value)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "api", "parse_languages", fmt.Sprintf("unknown language %q", value), err)
		}
		if !slices.Contains(out, code) {
			out = append(out, code)
		}
	}
	return out, nil
}

func stringKeys[V any](m map[language.Code]V) map[string]V {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]V, len(m))
	for code, v := range m {
		out[string(code)] = v
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
