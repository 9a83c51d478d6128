package offline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/forgefit/forge/internal/metrics"
)

// State is a worker lifecycle state.
type State string

const (
	StateInstalling  State = "installing"
	StateWaiting     State = "waiting"
	StateActivated   State = "activated"
	StateControlling State = "controlling"
	StateRedundant   State = "redundant"
)

// Worker is one installed version of the cache router.
type Worker struct {
	Version       string
	StaticBucket  string
	RuntimeBucket string

	mu    sync.Mutex
	state State
}

func newWorker(version string) *Worker {
	return &Worker{
		Version:       version,
		StaticBucket:  "static-v" + version,
		RuntimeBucket: "runtime-v" + version,
	}
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// WorkerStatus is the JSON view of a worker.
type WorkerStatus struct {
	Version string `json:"version"`
	State   State  `json:"state"`
}

// Status describes the registration.
type Status struct {
	Active  *WorkerStatus `json:"active,omitempty"`
	Waiting *WorkerStatus `json:"waiting,omitempty"`
	Buckets []string      `json:"buckets"`
}

// Broadcaster delivers messages to every connected page.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Message)
}

// Registration owns the installed workers and the cache storage. At most one
// worker controls requests and at most one waits to replace it.
type Registration struct {
	storage       *Storage
	up            *upstream
	criticalPaths []string
	log           *slog.Logger
	metrics       *metrics.Manager

	mu          sync.Mutex
	active      *Worker
	waiting     *Worker
	broadcaster Broadcaster
}

func newRegistration(storage *Storage, up *upstream, criticalPaths []string, log *slog.Logger, m *metrics.Manager) *Registration {
	return &Registration{
		storage:       storage,
		up:            up,
		criticalPaths: criticalPaths,
		log:           log,
		metrics:       m,
	}
}

func (r *Registration) setBroadcaster(b Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcaster = b
}

// Register installs version. Without a controlling worker it activates
// immediately; otherwise it waits for SkipWaiting.
func (r *Registration) Register(ctx context.Context, version string) (*Worker, error) {
	if version == "" {
		return nil, fmt.Errorf("worker version is required")
	}
	w := newWorker(version)
	r.setState(w, StateInstalling)
	r.log.Info("installing worker", "version", version)
	r.install(ctx, w)

	r.mu.Lock()
	if r.active == nil {
		r.mu.Unlock()
		r.activate(ctx, w)
		return w, nil
	}
	if r.waiting != nil && r.waiting != w {
		r.setState(r.waiting, StateRedundant)
	}
	r.waiting = w
	r.mu.Unlock()
	r.setState(w, StateWaiting)
	r.log.Info("worker waiting", "version", version)
	return w, nil
}

// install warms the critical paths into the static bucket and opens the
// runtime bucket. Warming is all or nothing; a failure is logged and the
// install still completes.
func (r *Registration) install(ctx context.Context, w *Worker) {
	static := r.storage.Open(w.StaticBucket)
	r.storage.Open(w.RuntimeBucket)

	fetched := make(map[string]*Response, len(r.criticalPaths))
	for _, p := range r.criticalPaths {
		resp, err := r.up.fetch(ctx, p, http.Header{})
		if err == nil && !resp.OK() {
			err = fmt.Errorf("status %d", resp.Status)
		}
		if err != nil {
			r.log.Error("worker install: caching critical resources failed", "version", w.Version, "path", p, "error", err)
			return
		}
		fetched[p] = resp
	}
	for p, resp := range fetched {
		if err := static.Put(p, resp); err != nil {
			r.log.Warn("worker install: resource not cached", "path", p, "error", err)
		}
	}
	r.log.Info("worker installed", "version", w.Version, "cached", len(fetched))
}

// SkipWaiting activates the waiting worker, if any.
func (r *Registration) SkipWaiting(ctx context.Context) bool {
	r.mu.Lock()
	w := r.waiting
	r.mu.Unlock()
	if w == nil {
		return false
	}
	r.activate(ctx, w)
	return true
}

// activate deletes every bucket the worker does not own, claims all clients
// and announces the new version.
func (r *Registration) activate(ctx context.Context, w *Worker) {
	r.setState(w, StateActivated)
	for _, name := range r.storage.Names() {
		if name != w.StaticBucket && name != w.RuntimeBucket {
			r.storage.Delete(name)
			r.log.Info("deleted old cache bucket", "bucket", name)
		}
	}

	r.mu.Lock()
	previous := r.active
	r.active = w
	if r.waiting == w {
		r.waiting = nil
	}
	b := r.broadcaster
	r.mu.Unlock()

	if previous != nil && previous != w {
		r.setState(previous, StateRedundant)
	}
	r.setState(w, StateControlling)
	r.log.Info("worker activated", "version", w.Version)

	if b != nil {
		b.Broadcast(ctx, Message{Type: MsgUpdated, Version: w.Version})
	}
}

// Active returns the controlling worker, or nil.
func (r *Registration) Active() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Waiting returns the installed worker waiting to activate, or nil.
func (r *Registration) Waiting() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// Version returns the controlling worker's version.
func (r *Registration) Version() string {
	if w := r.Active(); w != nil {
		return w.Version
	}
	return ""
}

func (r *Registration) Status() Status {
	s := Status{Buckets: r.storage.Names()}
	if w := r.Active(); w != nil {
		s.Active = &WorkerStatus{Version: w.Version, State: w.State()}
	}
	if w := r.Waiting(); w != nil {
		s.Waiting = &WorkerStatus{Version: w.Version, State: w.State()}
	}
	return s
}

func (r *Registration) setState(w *Worker, s State) {
	w.mu.Lock()
	prev := w.state
	w.state = s
	w.mu.Unlock()
	if r.metrics == nil {
		return
	}
	if prev != "" {
		r.metrics.GaugeWorkerState.WithLabelValues(w.Version, string(prev)).Set(0)
	}
	r.metrics.GaugeWorkerState.WithLabelValues(w.Version, string(s)).Set(1)
}
