package model

type SubmissionRequest struct {
	SubjectId  string     `json:"subject_id"`
	Submission Submission `json:"submission"`
}

type RunRequest struct {
	SubjectId string `json:"subject_id"`
}

type ResumeRequest struct {
	Decision HumanDecision `json:"decision"`
}

type RunView struct {
	Run   *Run           `json:"run"`
	State *WorkflowState `json:"state,omitempty"`
}

type CheckpointView struct {
	Sequence  int64    `json:"sequence"`
	Completed []string `json:"completed"`
	Events    []string `json:"events,omitempty"`
	CreatedAt string   `json:"created_at"`
}
