package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// Job is one running or finished sync.
type Job struct {
	ID      string
	Request SyncRequest

	mu        sync.Mutex
	state     models.SyncState
	cancelled bool
	cancel    context.CancelFunc
	done      chan struct{}
	result    *models.SyncResult
}

// State returns the job's current state.
func (j *Job) State() models.SyncState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Cancel requests cancellation. It is only honored before transfers begin; a job
// already Transferring or finished returns [shared.ErrCancelNotAllowed].
func (j *Job) Cancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case models.Idle, models.Fetching, models.Matching:
		j.cancelled = true
		j.cancel()
		return nil
	default:
		return fmt.Errorf("%w: job is %s", shared.ErrCancelNotAllowed, j.state)
	}
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes and returns its result.
func (j *Job) Wait() *models.SyncResult {
	<-j.done
	return j.Result()
}

// Result returns the terminal result, or nil while the job runs.
func (j *Job) Result() *models.SyncResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// advance moves to next unless cancellation was requested.
func (j *Job) advance(next models.SyncState) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled {
		return false
	}
	j.state = next
	return true
}

func (j *Job) finish(result *models.SyncResult) {
	j.mu.Lock()
	j.state = result.State
	j.result = result
	j.mu.Unlock()
	close(j.done)
}
