package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/user/quiz-runner-service/internal/repository"
	"github.com/user/quiz-runner-service/pkg/utils"
)

const runStatusPrefix = "run:"

// RunStatusRepoImpl provides a concrete implementation for the
// RunStatusRepository interface using Redis.
type RunStatusRepoImpl struct {
	client *redis.Client
}

// NewRunStatusRepo creates a new instance of RunStatusRepoImpl.
func NewRunStatusRepo(client *redis.Client) *RunStatusRepoImpl {
	return &RunStatusRepoImpl{client: client}
}

// generateKey creates a consistent Redis key for a start URL by hashing it.
func (r *RunStatusRepoImpl) generateKey(startURL string) string {
	return fmt.Sprintf("%s%s", runStatusPrefix, utils.HashURL(startURL))
}

// Set stores or replaces the status for a run, encoded as JSON, with expiry.
func (r *RunStatusRepoImpl) Set(ctx context.Context, status *entity.RunStatus, expiry time.Duration) error {
	now := time.Now()
	status.UpdatedAt = &now

	encoded, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.generateKey(status.StartURL), encoded, expiry).Err()
}

// Get retrieves the status for the given start URL.
func (r *RunStatusRepoImpl) Get(ctx context.Context, startURL string) (*entity.RunStatus, error) {
	raw, err := r.client.Get(ctx, r.generateKey(startURL)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrRunNotFound
		}
		return nil, err
	}

	var status entity.RunStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, err
	}
	return &status, nil
}
