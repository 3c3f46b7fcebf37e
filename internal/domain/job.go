package domain

// JobStatus is the lifecycle state of a synthesis job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// SynthesisJob is one request to the remote inference service.
// A job reaches a terminal status after exactly one remote call.
type SynthesisJob struct {
	ID              string    `json:"id"`
	SourceImage     string    `json:"source_image"`
	ExpressionImage string    `json:"expression_image"`
	Status          JobStatus `json:"status"` // "pending", "succeeded", "failed"
	ImagePath       string    `json:"image_path,omitempty"`
	FailureReason   string    `json:"failure_reason,omitempty"`
}

// InferenceRequest is the body posted to the inference service.
type InferenceRequest struct {
	ID    string         `json:"id"`
	Input InferenceInput `json:"input"`
}

// InferenceInput names the two images of a job.
type InferenceInput struct {
	SourceImageFile  string `json:"source_image_file"`
	DrivingImageFile string `json:"driving_image_file"`
}
