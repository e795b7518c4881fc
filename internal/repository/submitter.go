package repository

import (
	"context"
	"errors"

	"github.com/user/quiz-runner-service/internal/entity"
)

// ErrUnsafeSubmitURL indicates a submission target that is not http(s) or
// falls outside the configured domain allowlist. No request is attempted.
var ErrUnsafeSubmitURL = errors.New("submission URL is not an allowed target")

// AnswerSubmitter defines the contract for posting an answer payload to a
// scoring endpoint and interpreting its verdict. Transport failures are
// retried internally with backoff; the final failure is surfaced.
type AnswerSubmitter interface {
	Submit(ctx context.Context, url string, payload entity.AnswerPayload) (*entity.Verdict, error)
}
