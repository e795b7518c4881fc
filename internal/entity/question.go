package entity

import "encoding/json"

// QuestionDescriptor is the canonical form of a quiz question, produced by
// the structuring step from one ExtractedPage. SubmitURL and PayloadTemplate
// are mandatory; a descriptor missing either never leaves the structurer.
type QuestionDescriptor struct {
	SubmitURL           string          `json:"submit_url" validate:"required,http_url"`
	QuestionText        string          `json:"question_text"`
	SolvingPrompt       string          `json:"solving_prompt"`
	PayloadTemplate     json.RawMessage `json:"payload_template" validate:"required"`
	ProvidedDataPayload json.RawMessage `json:"provided_data_payload,omitempty"`
}

// AnswerPayload is the submission-ready object produced by the solving step.
// Fields mirror whatever shape the payload template demanded; a reply that
// was not valid JSON is preserved verbatim under the raw_content key.
type AnswerPayload map[string]any

// RawContentKey holds a model reply that could not be parsed as JSON.
const RawContentKey = "raw_content"
