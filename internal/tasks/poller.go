package tasks

import (
	"context"

	"github.com/aidso/geo-console/internal/api"
	"github.com/aidso/geo-console/internal/models"
	"github.com/sirupsen/logrus"
)

// The poller is a set of subscriptions keyed by task id, driven by one
// external tick loop (the scheduler in production, the test itself in
// tests). There is never more than one subscription per id, so a task is
// fetched at most once per tick.

// Track subscribes a task id to polling. Idempotent; re-tracking an already
// tracked id is a no-op.
func (r *Registry) Track(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return
	}
	if t := r.tasks[id]; t.Status.Terminal() {
		return
	}
	r.polling[id] = struct{}{}
}

// Untrack unsubscribes a task id. Idempotent.
func (r *Registry) Untrack(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.polling, id)
}

// IsPolling reports whether the id has an active poll subscription.
func (r *Registry) IsPolling(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.polling[id]
	return ok
}

// PollingCount returns the number of active subscriptions.
func (r *Registry) PollingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.polling)
}

// PollActive runs one poll tick: every subscribed task is fetched once and
// its local copy overwritten with the server state. Terminal statuses and
// 404s end the subscription permanently; any other failure is swallowed and
// retried on the next tick.
func (r *Registry) PollActive(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.polling))
	for id := range r.polling {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.pollOnce(ctx, id)
	}
}

func (r *Registry) pollOnce(ctx context.Context, id string) {
	task, err := r.api.GetTask(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			logrus.Infof("Task %s no longer exists on the backend, polling stopped", id)
			r.Untrack(id)
			return
		}
		// Transient; the next tick retries.
		logrus.Debugf("Poll of task %s failed: %v", id, err)
		return
	}

	if finished, ok := r.applyUpdate(task); ok && finished && r.listener != nil {
		snapshot, _ := r.Task(id)
		r.listener.TaskFinished(snapshot)
	}
}

// applyUpdate overwrites the local copy with the fetched state. The update
// is keyed against current state: if the id was removed meanwhile (a stale
// response racing a delete), it is dropped. Progress never regresses and
// logs never shrink while the task is live. Returns whether the task just
// became terminal and whether the update was applied.
func (r *Registry) applyUpdate(incoming *models.Task) (becameTerminal, applied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[incoming.ID]
	if !ok {
		delete(r.polling, incoming.ID)
		return false, false
	}

	wasTerminal := existing.Status.Terminal()

	updated := *incoming
	if updated.Progress < existing.Progress && !updated.Status.Terminal() {
		updated.Progress = existing.Progress
	}
	if len(updated.Logs) < len(existing.Logs) {
		updated.Logs = existing.Logs
	}
	*existing = updated

	if existing.Status.Terminal() {
		delete(r.polling, existing.ID)
		return !wasTerminal, true
	}
	return false, true
}
