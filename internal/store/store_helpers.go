package store

import (
	"database/sql"
	"time"

	"dubline/internal/language"
	"dubline/internal/state"
)

const jobColumns = `language, job_id, state, output_url, error, attempts, submitted_at, last_polled_at, updated_at`

func scanJob(scanner interface{ Scan(dest ...any) error }, workflowID *string) (state.JobRecord, error) {
	var (
		rec                              state.JobRecord
		lang, st                         string
		jobID, outputURL, errMsg, polled sql.NullString
		submittedRaw, updatedRaw         string
	)
	if err := scanner.Scan(workflowID, &lang, &jobID, &st, &outputURL, &errMsg, &rec.Attempts, &submittedRaw, &polled, &updatedRaw); err != nil {
		return state.JobRecord{}, err
	}
	rec.Language = language.Code(lang)
	rec.JobID = jobID.String
	rec.State = state.JobState(st)
	rec.OutputURL = outputURL.String
	rec.Error = errMsg.String
	rec.SubmittedAt, _ = parseTimeString(submittedRaw)
	rec.UpdatedAt, _ = parseTimeString(updatedRaw)
	if polled.Valid {
		if ts, err := parseTimeString(polled.String); err == nil {
			rec.LastPolledAt = &ts
		}
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
