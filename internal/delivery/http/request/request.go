package request

// SubmitTaskRequest is the intake payload for one quiz chain run.
type SubmitTaskRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Secret string `json:"secret" validate:"required"`
	URL    string `json:"url" validate:"required,http_url"`
}
