// Package tasks maintains the local view of the user's backend-tracked
// analysis tasks. The registry is the single writer of the task collection
// and the active-task selection; consumers read snapshots and route every
// mutation through its operations.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/aidso/geo-console/internal/api"
	"github.com/aidso/geo-console/internal/models"
	"github.com/sirupsen/logrus"
)

// taskClient is the slice of the API client the registry needs.
type taskClient interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, req api.CreateTaskRequest) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// TerminalListener is notified once when a tracked task reaches a terminal
// status.
type TerminalListener interface {
	TaskFinished(task models.Task)
}

// Registry owns the task collection, the active-task selection, and the set
// of poll subscriptions. The backend is authoritative: every poll tick and
// every Refresh overwrite local state with what the server returned.
type Registry struct {
	api      taskClient
	listener TerminalListener

	mu      sync.RWMutex
	order   []string
	tasks   map[string]*models.Task
	active  string
	polling map[string]struct{}
}

// NewRegistry creates an empty registry backed by the given client.
func NewRegistry(client taskClient) *Registry {
	return &Registry{
		api:     client,
		tasks:   make(map[string]*models.Task),
		polling: make(map[string]struct{}),
	}
}

// SetTerminalListener registers the listener invoked when a polled task
// completes or fails. Must be called before polling starts.
func (r *Registry) SetTerminalListener(l TerminalListener) {
	r.listener = l
}

// Refresh replaces the local task set with the server's, wholesale: tasks
// missing from the response disappear, pollers are re-derived from the new
// set, and the active selection survives only if its id is still present
// (falling back to the first task, then to none). A 401 means "not logged
// in" and is a silent no-op; other errors propagate.
func (r *Registry) Refresh(ctx context.Context) error {
	list, err := r.api.ListTasks(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			logrus.Debug("Task refresh skipped: no session")
			return nil
		}
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = r.order[:0]
	r.tasks = make(map[string]*models.Task, len(list))
	r.polling = make(map[string]struct{})

	for i := range list {
		t := list[i]
		r.order = append(r.order, t.ID)
		r.tasks[t.ID] = &t
		if !t.Status.Terminal() {
			r.polling[t.ID] = struct{}{}
		}
	}

	if _, ok := r.tasks[r.active]; !ok {
		if len(r.order) > 0 {
			r.active = r.order[0]
		} else {
			r.active = ""
		}
	}

	logrus.Debugf("Reconciled %d tasks, %d under polling", len(r.order), len(r.polling))
	return nil
}

// Add creates a task on the backend, prepends it locally, selects it, and
// starts polling it. Creation failures are propagated untouched so the
// caller can render the classified message.
func (r *Registry) Add(ctx context.Context, keyword string, searchType models.SearchType, modelKeys []string) (*models.Task, error) {
	created, err := r.api.CreateTask(ctx, api.CreateTaskRequest{
		Keyword:    keyword,
		SearchType: searchType,
		Models:     modelKeys,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.order = append([]string{created.ID}, r.order...)
	r.tasks[created.ID] = created
	r.active = created.ID
	if !created.Status.Terminal() {
		r.polling[created.ID] = struct{}{}
	}
	r.mu.Unlock()

	logrus.Infof("Created task %s (%s, %d models)", created.ID, keyword, len(modelKeys))
	snapshot := *created
	return &snapshot, nil
}

// Minimize deselects the active task without touching its data.
func (r *Registry) Minimize() {
	r.mu.Lock()
	r.active = ""
	r.mu.Unlock()
}

// Restore selects the given id unconditionally. Callers are responsible for
// passing an id they know exists, e.g. from a search-result listing. A
// restored live task keeps (at most) its one poll subscription.
func (r *Registry) Restore(id string) {
	r.mu.Lock()
	r.active = id
	if t, ok := r.tasks[id]; ok && !t.Status.Terminal() {
		r.polling[id] = struct{}{}
	}
	r.mu.Unlock()
}

// Delete removes the task locally right away, stops its poller, and issues
// a best-effort backend delete in the background. The local removal is
// never rolled back: a backend failure is logged and dropped.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.tasks, id)
	delete(r.polling, id)
	for i, tid := range r.order {
		if tid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.active == id {
		r.active = ""
	}
	r.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.api.DeleteTask(ctx, id); err != nil {
			logrus.Warnf("Backend delete of task %s failed (local removal stands): %v", id, err)
		}
	}()
}

// SessionChanged reacts to login/logout. Logout drops every task, poller,
// and the selection; login pulls a fresh list.
func (r *Registry) SessionChanged(ctx context.Context, loggedIn bool) {
	if !loggedIn {
		r.mu.Lock()
		r.order = nil
		r.tasks = make(map[string]*models.Task)
		r.polling = make(map[string]struct{})
		r.active = ""
		r.mu.Unlock()
		logrus.Info("Session ended, task registry cleared")
		return
	}

	if err := r.Refresh(ctx); err != nil {
		logrus.Errorf("Task refresh after login failed: %v", err)
	}
}

// Tasks returns the tasks in display order, newest first.
func (r *Registry) Tasks() []models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Task, 0, len(r.order))
	for _, id := range r.order {
		if t, ok := r.tasks[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// ActiveTask returns a copy of the selected task, or nil when none is
// selected or the selected id is unknown locally.
func (r *Registry) ActiveTask() *models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.tasks[r.active]; ok {
		snapshot := *t
		return &snapshot
	}
	return nil
}

// ActiveID returns the selected task id, or "".
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Task returns a copy of one task by id.
func (r *Registry) Task(id string) (models.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.tasks[id]; ok {
		return *t, true
	}
	return models.Task{}, false
}
