package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/user/quiz-runner-service/internal/repository"
	"github.com/user/quiz-runner-service/pkg/metrics"
	"github.com/user/quiz-runner-service/pkg/utils"
)

const solverSystemPrompt = `You are a quiz-solving agent. You receive one quiz question, its expected
submission payload shape and any provided data. Produce the answer.

Rules:
- Return ONLY a JSON object matching the payload template, nothing else.
- Fill every null in the template with the computed value.
- Convert relative URLs in the question to absolute ones using the base URL.
- Do NOT wrap the object in markdown fences.
- Do NOT invent fields the template does not have, except those you were
  explicitly told to include.`

// Solver produces a submission-ready answer payload from a question
// descriptor by asking the language model.
type Solver struct {
	llm              repository.ChatCompleter
	pageTextFallback bool
}

// NewSolver creates a Solver. When pageTextFallback is set and the page had
// no usable provided data, the raw page text is supplied as context instead.
func NewSolver(llm repository.ChatCompleter, pageTextFallback bool) *Solver {
	return &Solver{llm: llm, pageTextFallback: pageTextFallback}
}

// Solve builds the solving prompt and parses the model reply into an answer
// payload. A non-JSON reply is preserved verbatim under the raw_content key
// rather than discarded; the orchestrator may still submit it. The feedback
// argument carries the scoring endpoint's reason from a previous incorrect
// attempt and is empty on the first try.
func (s *Solver) Solve(ctx context.Context, descriptor *entity.QuestionDescriptor, page *entity.ExtractedPage, email, feedback string) (entity.AnswerPayload, error) {
	messages := []entity.ChatMessage{
		{Role: entity.RoleSystem, Content: solverSystemPrompt},
		{Role: entity.RoleUser, Content: s.buildSolverPrompt(descriptor, page, email, feedback)},
	}

	reply, err := s.llm.Complete(ctx, messages)
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues("solve", "error").Inc()
		return nil, fmt.Errorf("solving call failed: %w", err)
	}
	metrics.LLMCallsTotal.WithLabelValues("solve", "ok").Inc()

	cleaned := stripCodeFences(reply)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty model reply", ErrSolvingFailed)
	}

	payload := parseAnswerPayload(cleaned)
	s.ensureEmail(payload, descriptor, email)

	slog.Info("Answer produced", "submit_url", descriptor.SubmitURL, "degenerate", payload[entity.RawContentKey] != nil)
	return payload, nil
}

// parseAnswerPayload attempts structural parsing; anything that is not a
// JSON object degrades to a raw-content payload.
func parseAnswerPayload(reply string) entity.AnswerPayload {
	var payload entity.AnswerPayload
	if err := json.Unmarshal([]byte(reply), &payload); err == nil && payload != nil {
		return payload
	}
	return entity.AnswerPayload{entity.RawContentKey: reply}
}

// ensureEmail fills the email field when the payload template demands one
// and the model left it out.
func (s *Solver) ensureEmail(payload entity.AnswerPayload, descriptor *entity.QuestionDescriptor, email string) {
	var template map[string]any
	if err := json.Unmarshal(descriptor.PayloadTemplate, &template); err != nil {
		return
	}
	if _, demanded := template["email"]; demanded {
		if v, ok := payload["email"]; !ok || v == nil || v == "" {
			payload["email"] = email
		}
	}
}

func (s *Solver) buildSolverPrompt(descriptor *entity.QuestionDescriptor, page *entity.ExtractedPage, email, feedback string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question:\n%s\n\n", descriptor.QuestionText)
	if descriptor.SolvingPrompt != "" {
		fmt.Fprintf(&b, "Solving instructions:\n%s\n\n", descriptor.SolvingPrompt)
	}
	fmt.Fprintf(&b, "Payload template:\n%s\n\n", descriptor.PayloadTemplate)

	base := page.SourceURL
	if stripped, err := utils.StripQuery(page.SourceURL); err == nil {
		base = stripped
	}
	fmt.Fprintf(&b, "Base URL for resolving relative references: %s\n", base)
	fmt.Fprintf(&b, "Submitter email: %s\n\n", email)

	b.WriteString(s.providedDataSection(descriptor, page))

	if feedback != "" {
		fmt.Fprintf(&b, "\nYour previous answer was rejected. Reason: %s\nProvide a corrected answer.\n", feedback)
	}
	return b.String()
}

func (s *Solver) providedDataSection(descriptor *entity.QuestionDescriptor, page *entity.ExtractedPage) string {
	if len(descriptor.ProvidedDataPayload) > 0 && string(descriptor.ProvidedDataPayload) != "null" {
		return fmt.Sprintf("Provided data:\n%s\n", descriptor.ProvidedDataPayload)
	}
	if page.ProvidedData.Kind != entity.ProvidedDataNone {
		return describeProvidedData(page.ProvidedData)
	}
	if s.pageTextFallback {
		// No structured provided data survived extraction; fall back to the
		// original page content as context.
		return fmt.Sprintf("Original page content:\n%s\n", page.VisibleText)
	}
	return ""
}
