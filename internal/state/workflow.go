package state

import (
	"fmt"
	"maps"
	"time"

	"dubline/internal/language"
)

// WorkflowState is everything produced so far for one session.
type WorkflowState struct {
	ID                string                      `json:"id"`
	VideoURL          string                      `json:"video_url,omitempty"`
	AudioURL          string                      `json:"audio_url,omitempty"`
	VideoDuration     time.Duration               `json:"video_duration"`
	DurationDefaulted bool                        `json:"duration_defaulted,omitempty"`
	Transcript        string                      `json:"transcript,omitempty"`
	Translations      map[language.Code]string    `json:"translations,omitempty"`
	SynthesizedAudio  map[language.Code]string    `json:"synthesized_audio,omitempty"`
	LipSyncJobs       map[language.Code]JobRecord `json:"lipsync_jobs,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

// NewWorkflowState returns an empty session.
func NewWorkflowState(id string, now time.Time) WorkflowState {
	ws := WorkflowState{ID: id, CreatedAt: now.UTC(), UpdatedAt: now.UTC()}
	ws.ensureMaps()
	return ws
}

func (w *WorkflowState) ensureMaps() {
	if w.Translations == nil {
		w.Translations = make(map[language.Code]string)
	}
	if w.SynthesizedAudio == nil {
		w.SynthesizedAudio = make(map[language.Code]string)
	}
	if w.LipSyncJobs == nil {
		w.LipSyncJobs = make(map[language.Code]JobRecord)
	}
}

// Clone returns a deep copy so callers can never mutate stored state.
func (w WorkflowState) Clone() WorkflowState {
	out := w
	out.Translations = maps.Clone(w.Translations)
	out.SynthesizedAudio = maps.Clone(w.SynthesizedAudio)
	out.LipSyncJobs = make(map[language.Code]JobRecord, len(w.LipSyncJobs))
	for lang, rec := range w.LipSyncJobs {
		out.LipSyncJobs[lang] = rec.Clone()
	}
	out.ensureMaps()
	return out
}

// ResetDownstream clears everything derived from the ingested source.
func (w *WorkflowState) ResetDownstream() {
	w.Transcript = ""
	w.Translations = make(map[language.Code]string)
	w.SynthesizedAudio = make(map[language.Code]string)
	w.LipSyncJobs = make(map[language.Code]JobRecord)
}

// PendingJobs returns records still waiting on the lip-sync service.
func (w WorkflowState) PendingJobs() []JobRecord {
	var out []JobRecord
	for _, code := range language.KeysOf(w.LipSyncJobs).Codes() {
		if rec := w.LipSyncJobs[code]; rec.Pending() {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// Phase summarizes how far the workflow has progressed.
func (w WorkflowState) Phase() string {
	switch {
	case len(w.LipSyncJobs) > 0:
		for _, rec := range w.LipSyncJobs {
			if rec.Pending() {
				return "lipsync_running"
			}
		}
		return "lipsync_done"
	case len(w.SynthesizedAudio) > 0:
		return "synthesized"
	case len(w.Translations) > 0:
		return "translated"
	case w.Transcript != "":
		return "transcribed"
	case w.AudioURL != "" || w.VideoURL != "":
		return "ingested"
	default:
		return "created"
	}
}

// CheckInvariants validates the map-key and dependency rules against the
// configured language set.
func (w WorkflowState) CheckInvariants(configured language.Set) error {
	for _, code := range language.KeysOf(w.Translations).Codes() {
		if !configured.Contains(code) {
			return fmt.Errorf("translation for unconfigured language %q", code)
		}
	}
	for _, code := range language.KeysOf(w.SynthesizedAudio).Codes() {
		if !configured.Contains(code) {
			return fmt.Errorf("synthesized audio for unconfigured language %q", code)
		}
	}
	for _, code := range language.KeysOf(w.LipSyncJobs).Codes() {
		if !configured.Contains(code) {
			return fmt.Errorf("lip-sync job for unconfigured language %q", code)
		}
		if rec := w.LipSyncJobs[code]; !rec.State.Valid() {
			return fmt.Errorf("lip-sync job for %q has invalid state %q", code, rec.State)
		}
	}
	return nil
}
