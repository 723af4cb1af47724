package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRunner completes instantly unless its id matches blockID, in which case
// it blocks until ctx is canceled.
type fakeRunner struct {
	blockID string
	calls   int32
}

func (r *fakeRunner) Run(ctx context.Context, job RoundJob) (RoundResult, error) {
	atomic.AddInt32(&r.calls, 1)
	if job.ID == r.blockID {
		<-ctx.Done()
		return RoundResult{ID: job.ID, Partial: true, Err: ctx.Err()}, ctx.Err()
	}
	return RoundResult{ID: job.ID}, nil
}

func TestLocalPoolRunsEveryJob(t *testing.T) {
	runner := &fakeRunner{}
	p := NewLocalPool(runner, 2, 0)

	for _, id := range []string{"r0", "r1", "r2"} {
		p.Submit(RoundJob{ID: id})
	}

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		select {
		case res := <-p.Results():
			seen[res.ID] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}
	p.Close()

	for _, id := range []string{"r0", "r1", "r2"} {
		if !seen[id] {
			t.Errorf("missing result for %s", id)
		}
	}
}

func TestLocalPoolCancelMarksPartial(t *testing.T) {
	runner := &fakeRunner{blockID: "stuck"}
	p := NewLocalPool(runner, 1, 0)

	p.Submit(RoundJob{ID: "stuck"})
	time.Sleep(20 * time.Millisecond)
	p.Cancel("stuck")

	select {
	case res := <-p.Results():
		if !res.Partial {
			t.Errorf("expected Partial=true for a canceled round")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for canceled result")
	}
	p.Close()
}
