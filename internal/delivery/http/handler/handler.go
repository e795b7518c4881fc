package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/user/quiz-runner-service/internal/delivery/http/request"
	"github.com/user/quiz-runner-service/internal/delivery/http/response"
	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/user/quiz-runner-service/internal/repository"
	"github.com/user/quiz-runner-service/internal/usecase"
	"github.com/user/quiz-runner-service/pkg/utils"
)

// Handler exposes the intake boundary. Validation failures are surfaced to
// the caller directly; an accepted task is acknowledged immediately while
// the chain proceeds asynchronously.
type Handler struct {
	runner       usecase.ChainRunner
	statusRepo   repository.RunStatusRepository
	recordRepo   repository.RunRecordRepository
	secretKey    string
	allowedEmail string
	chainTimeout time.Duration
	statusExpiry time.Duration
	validate     *validator.Validate
	// launch starts a chain run; replaced in tests to run synchronously.
	launch func(task entity.QuizTask)
}

// NewHandler creates the intake handler. chainTimeout bounds how long a
// detached chain run may live; it should exceed the chain's own time budget.
// statusExpiry matches the expiry the chain itself uses for status entries.
func NewHandler(runner usecase.ChainRunner, statusRepo repository.RunStatusRepository, recordRepo repository.RunRecordRepository, secretKey, allowedEmail string, chainTimeout, statusExpiry time.Duration) *Handler {
	h := &Handler{
		runner:       runner,
		statusRepo:   statusRepo,
		recordRepo:   recordRepo,
		secretKey:    secretKey,
		allowedEmail: allowedEmail,
		chainTimeout: chainTimeout,
		statusExpiry: statusExpiry,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
	h.launch = h.launchDetached
	return h
}

// HandleSubmitTask accepts a quiz task, validates it and schedules the chain
// run. The caller only ever sees accept or reject; chain outcomes are
// observable via the status endpoint and logs.
func (h *Handler) HandleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Secret is checked before anything else so the response does not leak
	// which other fields were wrong.
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secretKey)) != 1 {
		slog.Warn("Task rejected: invalid secret")
		h.writeJSONError(w, "Invalid secret", http.StatusForbidden)
		return
	}

	if !strings.EqualFold(strings.TrimSpace(req.Email), strings.TrimSpace(h.allowedEmail)) {
		slog.Warn("Task rejected: email not allowed", "email", req.Email)
		h.writeJSONError(w, "Invalid email", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.writeJSONError(w, "Invalid URL format", http.StatusBadRequest)
		return
	}

	task := entity.QuizTask{
		Email:    req.Email,
		Secret:   req.Secret,
		StartURL: req.URL,
	}

	slog.Info("Task accepted, scheduling chain run", "url", task.StartURL)

	// Record the accepted state before the goroutine starts, so a status
	// query between the 202 and the chain's first write does not 404.
	accepted := &entity.RunStatus{StartURL: task.StartURL, State: entity.RunStateAccepted}
	if err := h.statusRepo.Set(r.Context(), accepted, h.statusExpiry); err != nil {
		slog.Warn("Failed to record accepted status", "url", task.StartURL, "error", err)
	}

	h.launch(task)

	resp := response.SubmitTaskResponse{
		Status:  "accepted",
		Message: "Task received and queued for processing",
		RunID:   utils.HashURL(task.StartURL),
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

// HandleGetRunStatus reports the current state of a chain run by start URL.
func (h *Handler) HandleGetRunStatus(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.writeJSONError(w, "URL query parameter is required", http.StatusBadRequest)
		return
	}
	if !utils.IsHTTPURL(rawURL) {
		h.writeJSONError(w, "Invalid URL format in query parameter", http.StatusBadRequest)
		return
	}

	status, err := h.statusRepo.Get(r.Context(), rawURL)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			h.writeJSONError(w, "Run status not found for the given URL", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get run status", "url", rawURL, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.RunStatusResponse{
		StartURL:      status.StartURL,
		State:         status.State,
		QuestionIndex: status.QuestionIndex,
		FailureReason: status.FailureReason,
		UpdatedAt:     status.UpdatedAt,
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetRunHistory reports the persisted record of a chain run by run ID.
// Unlike the status endpoint this survives status expiry in Redis.
func (h *Handler) HandleGetRunHistory(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		h.writeJSONError(w, "run_id query parameter is required", http.StatusBadRequest)
		return
	}

	record, err := h.recordRepo.FindByRunID(r.Context(), runID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			h.writeJSONError(w, "No run record found for the given run_id", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get run record", "run_id", runID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.RunRecordResponse{
		RunID:           record.RunID,
		StartURL:        record.StartURL,
		State:           record.State,
		QuestionsSolved: record.QuestionsSolved,
		FailureReason:   record.FailureReason,
		StartedAt:       record.StartedAt,
		FinishedAt:      record.FinishedAt,
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// launchDetached runs the chain in its own goroutine with a context detached
// from the intake request, so the chain survives the request returning.
func (h *Handler) launchDetached(task entity.QuizTask) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.chainTimeout)
		defer cancel()
		if err := h.runner.Run(ctx, task); err != nil {
			slog.Error("Chain run terminated with error", "start_url", task.StartURL, "error", err)
		}
	}()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
