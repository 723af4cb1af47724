// Package registry mirrors each round's lifecycle and latest summary to a
// shared store so the status API (internal/api) can report fleet-wide
// progress even when the API process and the simulation workers run on
// separate hosts. Adapted from the teacher's internal/storage RedisClient
// wrapper: a key-prefixed client, JSON-encoded values, best-effort writes.
// Unlike the teacher, mirroring here is optional and never fails a round —
// a nil or unreachable Redis client degrades to pure in-memory status (an
// unreachable one is logged as a warning).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bawdyanarchist/minesim/internal/metrics"
	"github.com/bawdyanarchist/minesim/internal/telemetry"
)

// Status is a round's lifecycle state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusPartial Status = "partial"
)

const (
	keyPrefix     = "minesim:"
	keyRoundHash  = keyPrefix + "round:%s"
	keyRoundIndex = keyPrefix + "rounds"
)

// RoundState is one round's latest known status, mirrored both in memory and
// (best-effort) in Redis.
type RoundState struct {
	ID        string                `json:"id"`
	Status    Status                `json:"status"`
	Summary   *metrics.RoundSummary `json:"summary,omitempty"`
	Err       string                `json:"err,omitempty"`
	UpdatedAt int64                 `json:"updatedAt"`
}

// Registry tracks round lifecycle state. It always keeps an authoritative
// in-memory copy; the Redis client, when present and reachable, receives a
// best-effort mirror of every write for external observability (spec §2.7).
type Registry struct {
	mu     sync.RWMutex
	states map[string]RoundState

	client *redis.Client
	ctx    context.Context
}

// New constructs a Registry. If addr is empty, the registry runs in-memory
// only. A Redis connection failure is logged and otherwise ignored — the
// registry still works, it just can't mirror externally.
func New(addr, password string, db int) *Registry {
	r := &Registry{
		states: make(map[string]RoundState),
		ctx:    context.Background(),
	}
	if addr == "" {
		return r
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		telemetry.Log().Warnw("registry: redis unreachable, degrading to in-memory only", "addr", addr, "error", err)
		return r
	}
	r.client = client
	return r
}

// Close releases the Redis connection, if any.
func (r *Registry) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// SetQueued records a round as queued, awaiting a free worker slot.
func (r *Registry) SetQueued(id string) {
	r.set(RoundState{ID: id, Status: StatusQueued})
}

// SetRunning records a round as actively executing.
func (r *Registry) SetRunning(id string) {
	r.set(RoundState{ID: id, Status: StatusRunning})
}

// SetDone records a round's successful completion along with its summary.
func (r *Registry) SetDone(id string, summary metrics.RoundSummary) {
	r.set(RoundState{ID: id, Status: StatusDone, Summary: &summary})
}

// SetPartial records a round that was canceled mid-flight (e.g. the
// WORKER_RAM cap tripped), optionally with whatever summary was computed
// before cancellation.
func (r *Registry) SetPartial(id string, summary *metrics.RoundSummary, cause error) {
	state := RoundState{ID: id, Status: StatusPartial, Summary: summary}
	if cause != nil {
		state.Err = cause.Error()
	}
	r.set(state)
}

// Get returns the current state of round id.
func (r *Registry) Get(id string) (RoundState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[id]
	return s, ok
}

// All returns a snapshot of every round's current state.
func (r *Registry) All() []RoundState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoundState, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s)
	}
	return out
}

// set stamps state with the current wall-clock time, updates the in-memory
// state and, best-effort, mirrors it to Redis.
func (r *Registry) set(state RoundState) {
	state.UpdatedAt = time.Now().Unix()

	r.mu.Lock()
	r.states[state.ID] = state
	r.mu.Unlock()

	if r.client == nil {
		return
	}
	r.mirror(state)
}

func (r *Registry) mirror(state RoundState) {
	payload, err := json.Marshal(state)
	if err != nil {
		telemetry.Log().Warnw("registry: marshal round state", "roundId", state.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
	defer cancel()

	pipe := r.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(keyRoundHash, state.ID), payload, 0)
	pipe.SAdd(ctx, keyRoundIndex, state.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		telemetry.Log().Warnw("registry: redis mirror failed", "roundId", state.ID, "error", err)
	}
}
