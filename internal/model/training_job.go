package model

type JobState string

const (
	JobStateIdle            JobState = "idle"
	JobStateFetchingData    JobState = "fetching_data"
	JobStateLoading         JobState = "loading"
	JobStateCancelRequested JobState = "cancel_requested"
	JobStateComplete        JobState = "complete"
)

// FileError is one entry of the error list reported at the end of a run.
// ErrorID is set for conditions callers special-case, such as quota exhaustion.
type FileError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	ErrorID string `json:"error_id,omitempty"`
}

type TrainingJob struct {
	ID        string      `json:"id"`
	SourceID  string      `json:"source_id"`
	State     JobState    `json:"state"`
	Progress  int         `json:"progress"`
	Total     int         `json:"total"`
	Filename  string      `json:"filename"`
	Processed int         `json:"processed"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Cancelled bool        `json:"cancelled"`
	Errors    []FileError `json:"errors"`
	Warnings  []FileError `json:"warnings,omitempty"`
	Ctime     int64       `json:"ctime"`
	Mtime     int64       `json:"mtime"`
}

// Clone returns a copy that is safe to hand to readers outside the orchestrator.
func (j *TrainingJob) Clone() *TrainingJob {
	if j == nil {
		return nil
	}
	out := *j
	out.Errors = append([]FileError(nil), j.Errors...)
	if len(j.Warnings) > 0 {
		out.Warnings = append([]FileError(nil), j.Warnings...)
	}
	return &out
}
