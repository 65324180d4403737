package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"genstudio-backend/internal/domain/ports/repository"
)

var _ repository.CancelStore = (*CancelStore)(nil)

// CancelStore keeps cancellation markers in Redis so any worker replica can
// observe them. Markers expire on their own; a job that already finished
// simply never reads its marker.
type CancelStore struct {
	client Client
	ttl    time.Duration
}

func NewCancelStore(client Client, ttl time.Duration) *CancelStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CancelStore{client: client, ttl: ttl}
}

func (s *CancelStore) RequestCancel(ctx context.Context, taskRef string) error {
	return s.client.Set(ctx, cancelKey(taskRef), "1", s.ttl)
}

func (s *CancelStore) Cancelled(ctx context.Context, taskRef string) (bool, error) {
	_, err := s.client.Get(ctx, cancelKey(taskRef))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func cancelKey(taskRef string) string {
	return fmt.Sprintf("job_cancel:%s", taskRef)
}
