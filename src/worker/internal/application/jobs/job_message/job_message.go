package job_message

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// RestoreRequest is the wire shape of an incoming restoration job.
type RestoreRequest struct {
	FilePath     string `json:"file_path"`
	OriginalName string `json:"original_name"`
}

// RestoreResult is published to the result queue for every handled job,
// successful or not. Paths are only set on success.
type RestoreResult struct {
	JobID      string `json:"job_id"`
	Status     Status `json:"status"`
	FinalPath  string `json:"final_path,omitempty"`
	VocalsPath string `json:"vocals_path,omitempty"`
}
