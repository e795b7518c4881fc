package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/user/quiz-runner-service/internal/repository"
	"github.com/user/quiz-runner-service/pkg/metrics"
	"github.com/user/quiz-runner-service/pkg/utils"
)

// maxSubmissionsPerQuestion caps one original attempt plus one
// feedback-driven retry. The bound exists to avoid unbounded back-and-forth
// against an unreliable model.
const maxSubmissionsPerQuestion = 2

// ChainRunner drives one quiz chain from its start URL to a terminal state.
type ChainRunner interface {
	Run(ctx context.Context, task entity.QuizTask) error
}

// ChainConfig bounds and tunes one chain run.
type ChainConfig struct {
	// MaxIterations is the depth budget: the maximum number of chained
	// questions a single run may follow.
	MaxIterations int
	// MaxChainDuration is the wall-clock time budget for the whole chain.
	MaxChainDuration time.Duration
	// QuestionPause is the courtesy pause between successive questions.
	QuestionPause time.Duration
	// FollowNextOnIncorrect continues the chain when an incorrect verdict
	// nonetheless carries a next URL. Off by default.
	FollowNextOnIncorrect bool
	// StatusExpiry bounds how long run status entries live in Redis.
	StatusExpiry time.Duration
}

type chainRunnerUseCase struct {
	extractor  repository.PageExtractor
	structurer *Structurer
	solver     *Solver
	submitter  repository.AnswerSubmitter
	statusRepo repository.RunStatusRepository
	recordRepo repository.RunRecordRepository
	cfg        ChainConfig
	// now is swappable for tests.
	now func() time.Time
}

// NewChainRunner creates the chain orchestrator use case.
func NewChainRunner(
	extractor repository.PageExtractor,
	structurer *Structurer,
	solver *Solver,
	submitter repository.AnswerSubmitter,
	statusRepo repository.RunStatusRepository,
	recordRepo repository.RunRecordRepository,
	cfg ChainConfig,
) ChainRunner {
	return &chainRunnerUseCase{
		extractor:  extractor,
		structurer: structurer,
		solver:     solver,
		submitter:  submitter,
		statusRepo: statusRepo,
		recordRepo: recordRepo,
		cfg:        cfg,
		now:        time.Now,
	}
}

// chainRunState is owned exclusively by one Run invocation and destroyed
// when the chain terminates.
type chainRunState struct {
	currentURL    string
	questionIndex int
	depth         int
	startedAt     time.Time
}

// Run executes the chain state machine: extract, structure, solve, submit,
// then branch on the verdict. It returns nil when the chain completes and
// the terminating error otherwise. Outcomes are also recorded in the status
// store, the run history table and metrics; the intake caller never sees
// them directly.
func (uc *chainRunnerUseCase) Run(ctx context.Context, task entity.QuizTask) error {
	state := &chainRunState{
		currentURL: task.StartURL,
		startedAt:  uc.now(),
	}
	record := &entity.RunRecord{
		RunID:     utils.HashURL(task.StartURL),
		StartURL:  task.StartURL,
		Email:     task.Email,
		State:     entity.RunStateRunning,
		StartedAt: state.startedAt,
	}

	metrics.ActiveChains.Inc()
	defer metrics.ActiveChains.Dec()
	defer func() {
		metrics.ChainDuration.Observe(uc.now().Sub(state.startedAt).Seconds())
	}()

	uc.publishState(ctx, state, record, entity.RunStateRunning, "")
	slog.Info("Quiz chain started", "start_url", task.StartURL, "run_id", record.RunID)

	for {
		// Budget checks pre-empt any further network calls for this question.
		if reason := uc.budgetViolation(state); reason != "" {
			return uc.fail(ctx, state, record, fmt.Errorf("%w: %s", ErrBudgetExceeded, reason))
		}
		if err := ctx.Err(); err != nil {
			return uc.fail(ctx, state, record, fmt.Errorf("chain cancelled: %w", err))
		}

		verdict, err := uc.runQuestion(ctx, task, state)
		if err != nil {
			metrics.QuestionsTotal.WithLabelValues("error").Inc()
			return uc.fail(ctx, state, record, err)
		}

		switch {
		case bool(verdict.Correct) && verdict.NextURL != "":
			metrics.QuestionsTotal.WithLabelValues("correct").Inc()
			uc.advance(ctx, state, record, verdict.NextURL)

		case bool(verdict.Correct):
			metrics.QuestionsTotal.WithLabelValues("correct").Inc()
			record.QuestionsSolved = state.questionIndex + 1
			return uc.complete(ctx, state, record)

		case verdict.NextURL != "" && uc.cfg.FollowNextOnIncorrect:
			// Some scoring endpoints hand out the next URL even on an
			// incorrect answer; following it is opt-in behavior.
			metrics.QuestionsTotal.WithLabelValues("incorrect").Inc()
			slog.Warn("Continuing chain despite incorrect verdict", "url", state.currentURL, "next_url", verdict.NextURL)
			uc.advance(ctx, state, record, verdict.NextURL)

		default:
			metrics.QuestionsTotal.WithLabelValues("incorrect").Inc()
			return uc.fail(ctx, state, record, fmt.Errorf("answer rejected: %s", verdict.Reason))
		}

		// Courtesy pause so the scoring endpoint is not hammered between
		// successive questions.
		uc.pause(ctx)
	}
}

// runQuestion runs one question through extraction, structuring, solving and
// submission, including the single feedback-driven retry on an incorrect
// verdict.
func (uc *chainRunnerUseCase) runQuestion(ctx context.Context, task entity.QuizTask, state *chainRunState) (*entity.Verdict, error) {
	slog.Info("Processing question", "index", state.questionIndex, "url", state.currentURL)

	page, err := uc.extractor.Extract(ctx, state.currentURL)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", state.currentURL, err)
	}

	descriptor, err := uc.structurer.Structure(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("structuring failed for %s: %w", state.currentURL, err)
	}

	feedback := ""
	var verdict *entity.Verdict
	for attempt := 1; attempt <= maxSubmissionsPerQuestion; attempt++ {
		payload, err := uc.solver.Solve(ctx, descriptor, page, task.Email, feedback)
		if err != nil {
			return nil, fmt.Errorf("solving failed for %s: %w", state.currentURL, err)
		}
		uc.ensureSecret(payload, descriptor, task)

		verdict, err = uc.submitter.Submit(ctx, descriptor.SubmitURL, payload)
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("submission failed for %s: %w", descriptor.SubmitURL, err)
		}

		if verdict.Correct {
			metrics.SubmissionsTotal.WithLabelValues("correct").Inc()
			return verdict, nil
		}
		metrics.SubmissionsTotal.WithLabelValues("incorrect").Inc()

		// Retry only with time budget remaining; the reason is fed back to
		// the solver as corrective feedback.
		if attempt < maxSubmissionsPerQuestion && uc.budgetViolation(state) == "" {
			slog.Warn("Answer incorrect, retrying with feedback", "url", state.currentURL, "reason", verdict.Reason)
			feedback = verdict.Reason
			if feedback == "" {
				feedback = "the answer was judged incorrect"
			}
			continue
		}
		break
	}
	return verdict, nil
}

// ensureSecret fills the secret field when the payload template demands one.
// The secret is injected here so it is never shown to the language model.
func (uc *chainRunnerUseCase) ensureSecret(payload entity.AnswerPayload, descriptor *entity.QuestionDescriptor, task entity.QuizTask) {
	var template map[string]any
	if err := json.Unmarshal(descriptor.PayloadTemplate, &template); err != nil {
		return
	}
	if _, demanded := template["secret"]; demanded {
		payload["secret"] = task.Secret
	}
}

func (uc *chainRunnerUseCase) budgetViolation(state *chainRunState) string {
	if elapsed := uc.now().Sub(state.startedAt); elapsed > uc.cfg.MaxChainDuration {
		return fmt.Sprintf("time budget of %s exceeded after %s", uc.cfg.MaxChainDuration, elapsed.Round(time.Second))
	}
	if state.depth >= uc.cfg.MaxIterations {
		return fmt.Sprintf("depth budget of %d questions exceeded", uc.cfg.MaxIterations)
	}
	return ""
}

func (uc *chainRunnerUseCase) advance(ctx context.Context, state *chainRunState, record *entity.RunRecord, nextURL string) {
	slog.Info("Advancing to next question", "next_url", nextURL, "solved", state.questionIndex+1)
	state.currentURL = nextURL
	state.questionIndex++
	state.depth++
	record.QuestionsSolved = state.questionIndex
	uc.publishState(ctx, state, record, entity.RunStateRunning, "")
}

func (uc *chainRunnerUseCase) complete(ctx context.Context, state *chainRunState, record *entity.RunRecord) error {
	slog.Info("Quiz chain completed", "start_url", record.StartURL, "questions_solved", record.QuestionsSolved)
	metrics.ChainsTotal.WithLabelValues(entity.RunStateCompleted, "").Inc()
	uc.publishState(ctx, state, record, entity.RunStateCompleted, "")
	return nil
}

func (uc *chainRunnerUseCase) fail(ctx context.Context, state *chainRunState, record *entity.RunRecord, cause error) error {
	slog.Error("Quiz chain failed", "start_url", record.StartURL, "question_index", state.questionIndex, "error", cause)
	metrics.ChainsTotal.WithLabelValues(entity.RunStateFailed, failureLabel(cause)).Inc()
	uc.publishState(ctx, state, record, entity.RunStateFailed, cause.Error())
	return cause
}

// publishState mirrors the run's current state to the status store and the
// run history table. Both are telemetry; their failures never abort a chain.
func (uc *chainRunnerUseCase) publishState(ctx context.Context, state *chainRunState, record *entity.RunRecord, runState, failureReason string) {
	record.State = runState
	record.FailureReason = failureReason
	if runState == entity.RunStateCompleted || runState == entity.RunStateFailed {
		finished := uc.now()
		record.FinishedAt = &finished
	}

	status := &entity.RunStatus{
		StartURL:      record.StartURL,
		State:         runState,
		QuestionIndex: state.questionIndex,
		FailureReason: failureReason,
	}

	if uc.statusRepo != nil {
		if err := uc.statusRepo.Set(ctx, status, uc.cfg.StatusExpiry); err != nil {
			slog.Warn("Failed to update run status", "start_url", record.StartURL, "error", err)
		}
	}
	if uc.recordRepo != nil {
		if err := uc.recordRepo.Save(ctx, record); err != nil {
			slog.Warn("Failed to save run record", "start_url", record.StartURL, "error", err)
		}
	}
}

func (uc *chainRunnerUseCase) pause(ctx context.Context) {
	if uc.cfg.QuestionPause <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(uc.cfg.QuestionPause):
	}
}

func failureLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBudgetExceeded):
		return "budget"
	case errors.Is(err, repository.ErrNavigationFailed), errors.Is(err, repository.ErrExtractionFailed), errors.Is(err, repository.ErrBrowserLaunch):
		return "extraction"
	case errors.Is(err, ErrStructuringFailed):
		return "structuring"
	case errors.Is(err, ErrSolvingFailed):
		return "solving"
	case errors.Is(err, repository.ErrUnsafeSubmitURL):
		return "unsafe_url"
	default:
		return "other"
	}
}
