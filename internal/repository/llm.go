package repository

import (
	"context"

	"github.com/user/quiz-runner-service/internal/entity"
)

// ChatCompleter is the language model oracle. It accepts chat-style messages
// and returns the model's single reply content, either free text or a
// JSON-encoded object inside that text. Calls are not retried at this layer.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []entity.ChatMessage) (string, error)
}
