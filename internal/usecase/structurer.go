package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/user/quiz-runner-service/internal/repository"
	"github.com/user/quiz-runner-service/pkg/metrics"
)

const structurerSystemPrompt = `You are a quiz page analyst. You receive the raw content of a web page
hosting a single quiz question. Return ONLY one JSON object with exactly
these fields and nothing else:
{
  "submit_url": "<absolute http(s) URL the answer must be POSTed to>",
  "question_text": "<the question being asked>",
  "solving_prompt": "<instructions that would let another model answer the question>",
  "payload_template": <JSON object describing the expected submission shape, unknown values as null>,
  "provided_data_payload": <any auxiliary data the question references, or null>
}
Do not wrap the object in markdown fences. Do not add commentary.`

// Structurer turns raw extracted page content into a canonical question
// descriptor by asking the language model and strictly validating its reply.
type Structurer struct {
	llm      repository.ChatCompleter
	validate *validator.Validate
}

// NewStructurer creates a Structurer using the given model oracle.
func NewStructurer(llm repository.ChatCompleter) *Structurer {
	return &Structurer{
		llm:      llm,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Structure produces a QuestionDescriptor from one extracted page. A reply
// that is not a well-formed object carrying submit_url and payload_template
// is an error, never a partially populated descriptor.
func (s *Structurer) Structure(ctx context.Context, page *entity.ExtractedPage) (*entity.QuestionDescriptor, error) {
	messages := []entity.ChatMessage{
		{Role: entity.RoleSystem, Content: structurerSystemPrompt},
		{Role: entity.RoleUser, Content: buildStructurerPrompt(page)},
	}

	reply, err := s.llm.Complete(ctx, messages)
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues("structure", "error").Inc()
		return nil, fmt.Errorf("structuring call failed: %w", err)
	}
	metrics.LLMCallsTotal.WithLabelValues("structure", "ok").Inc()

	descriptor, err := s.parseDescriptor(reply)
	if err != nil {
		slog.Error("Structuring reply rejected", "url", page.SourceURL, "error", err)
		return nil, err
	}

	slog.Info("Question structured", "url", page.SourceURL, "submit_url", descriptor.SubmitURL)
	return descriptor, nil
}

func (s *Structurer) parseDescriptor(reply string) (*entity.QuestionDescriptor, error) {
	cleaned := stripCodeFences(reply)

	var descriptor entity.QuestionDescriptor
	if err := json.Unmarshal([]byte(cleaned), &descriptor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructuringFailed, err)
	}

	if err := s.validate.Struct(&descriptor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructuringFailed, err)
	}

	// payload_template must itself be a structurally valid JSON object.
	var template map[string]any
	if err := json.Unmarshal(descriptor.PayloadTemplate, &template); err != nil {
		return nil, fmt.Errorf("%w: payload_template is not a JSON object: %v", ErrStructuringFailed, err)
	}

	return &descriptor, nil
}

func buildStructurerPrompt(page *entity.ExtractedPage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Page URL: %s\n\n", page.SourceURL)
	fmt.Fprintf(&b, "Visible page text:\n%s\n\n", page.VisibleText)

	if len(page.CodeBlocks) > 0 {
		b.WriteString("Code blocks on the page:\n")
		for i, block := range page.CodeBlocks {
			fmt.Fprintf(&b, "--- block %d ---\n%s\n", i+1, block)
		}
		b.WriteString("\n")
	}

	if page.ProvidedDataURL != "" {
		fmt.Fprintf(&b, "Provided data URL: %s\n", page.ProvidedDataURL)
		b.WriteString(describeProvidedData(page.ProvidedData))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Rendered HTML:\n%s\n", page.HTML)
	return b.String()
}

// describeProvidedData serializes provided data for a prompt. Binary content
// is summarized rather than inlined.
func describeProvidedData(data entity.ProvidedData) string {
	switch data.Kind {
	case entity.ProvidedDataTabular:
		encoded, err := json.Marshal(data.Rows)
		if err != nil {
			return "Provided data: tabular (unserializable)\n"
		}
		return fmt.Sprintf("Provided data rows:\n%s\n", encoded)
	case entity.ProvidedDataHTML:
		return fmt.Sprintf("Provided data page HTML:\n%s\n", data.HTML)
	case entity.ProvidedDataBinary:
		return fmt.Sprintf("Provided data: binary resource, %d bytes\n", len(data.Raw))
	default:
		return ""
	}
}
