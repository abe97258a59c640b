// Package job runs import jobs on a bounded worker pool. Jobs touching the
// same model never run at the same time.
package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/engine/importer"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/keylock"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

const moduleName = "job_manager"

const (
	DefaultWorkers   = 2
	DefaultQueueSize = 100
)

// Status is the lifecycle state of a submitted job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the job has finished.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Spec describes a job to submit.
type Spec struct {
	Name    string
	Jobs    []importer.ModelJob
	Options importer.Options
}

// Snapshot is a point-in-time copy of a job's state.
type Snapshot struct {
	ID          string
	Name        string
	Models      []string
	Status      Status
	Result      *model.ImportResult
	Error       string
	SubmittedAt time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

type entry struct {
	spec            Spec
	snap            Snapshot
	imp             *importer.Importer
	cancelRequested bool
	done            chan struct{}
}

// Manager queues jobs and runs them on a fixed number of workers.
type Manager struct {
	importer *importer.Importer
	locks    *keylock.KeyedMutex
	queue    chan *entry
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*entry
	order  []string
	closed bool
}

// NewManager starts workers goroutines that run jobs with forks of imp.
func NewManager(imp *importer.Importer, workers, queueSize int) *Manager {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		importer: imp,
		locks:    keylock.New(),
		queue:    make(chan *entry, queueSize),
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*entry),
	}
	for w := 0; w < workers; w++ {
		m.wg.Add(1)
		go m.worker()
	}
	logger.Debugf("Job manager started with %d workers (queue size %d).", workers, queueSize)
	return m
}

// Submit queues spec and returns the job id.
func (m *Manager) Submit(spec Spec) (string, error) {
	if len(spec.Jobs) == 0 {
		return "", exception.NewConfigError(moduleName, "job has no models", nil)
	}

	models := make([]string, 0, len(spec.Jobs))
	for _, j := range spec.Jobs {
		models = append(models, j.Model)
	}
	e := &entry{
		spec: spec,
		snap: Snapshot{
			ID:          uuid.New().String(),
			Name:        spec.Name,
			Models:      models,
			Status:      StatusPending,
			SubmittedAt: time.Now(),
		},
		imp:  m.importer.Fork(),
		done: make(chan struct{}),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", exception.NewBatchErrorf(moduleName, "job manager is shut down")
	}
	select {
	case m.queue <- e:
	default:
		return "", exception.NewBatchErrorf(moduleName, "job queue is full (%d jobs)", cap(m.queue), true)
	}
	m.jobs[e.snap.ID] = e
	m.order = append(m.order, e.snap.ID)
	logger.Infof("Submitted job %s '%s' for %v.", e.snap.ID, spec.Name, models)
	return e.snap.ID, nil
}

// Get returns the snapshot of job id.
func (m *Manager) Get(id string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// List returns all jobs in submission order.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.jobs[id].snapshot())
	}
	return out
}

// Wait blocks until job id has finished or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Snapshot, error) {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, exception.NewBatchErrorf(moduleName, "job %s not found", id)
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	s, _ := m.Get(id)
	return s, nil
}

// Cancel cancels a pending job, or asks a running job to stop after the
// chunk in flight. A stopped job ends with status cancelled.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.jobs[id]
	if !ok {
		return exception.NewBatchErrorf(moduleName, "job %s not found", id)
	}
	switch e.snap.Status {
	case StatusPending:
		e.snap.Status = StatusCancelled
		e.snap.CompletedAt = time.Now()
		logger.Infof("Cancelled pending job %s.", id)
	case StatusRunning:
		e.cancelRequested = true
		e.imp.RequestStop()
		logger.Infof("Requested stop of running job %s.", id)
	default:
		return exception.NewBatchErrorf(moduleName, "job %s already finished with status %s", id, e.snap.Status)
	}
	return nil
}

// Shutdown stops accepting jobs, cancels pending ones, asks running ones to
// stop and waits for the workers until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	for _, id := range m.order {
		e := m.jobs[id]
		switch e.snap.Status {
		case StatusPending:
			e.snap.Status = StatusCancelled
			e.snap.CompletedAt = time.Now()
		case StatusRunning:
			e.cancelRequested = true
			e.imp.RequestStop()
		}
	}
	m.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.cancel()
		logger.Infof("Job manager shut down.")
		return nil
	case <-ctx.Done():
	}

	m.cancel()
	var errs *multierror.Error
	m.mu.RLock()
	for _, id := range m.order {
		if e := m.jobs[id]; !e.snap.Status.IsTerminal() {
			errs = multierror.Append(errs, fmt.Errorf("job %s '%s' still %s", id, e.snap.Name, e.snap.Status))
		}
	}
	m.mu.RUnlock()
	errs = multierror.Append(errs, ctx.Err())
	return errs.ErrorOrNil()
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for e := range m.queue {
		m.run(e)
	}
}

func (m *Manager) run(e *entry) {
	defer close(e.done)
	if m.status(e) == StatusCancelled {
		return
	}

	unlock := m.lockModels(e.snap.Models)
	defer unlock()

	m.mu.Lock()
	if e.snap.Status == StatusCancelled {
		m.mu.Unlock()
		return
	}
	e.snap.Status = StatusRunning
	e.snap.StartedAt = time.Now()
	m.mu.Unlock()
	logger.Infof("Running job %s '%s'.", e.snap.ID, e.spec.Name)

	result, err := e.imp.Run(m.ctx, e.spec.Jobs, e.spec.Options)

	m.mu.Lock()
	defer m.mu.Unlock()
	e.snap.Result = result
	e.snap.CompletedAt = time.Now()
	switch {
	case e.cancelRequested:
		e.snap.Status = StatusCancelled
	case err != nil:
		e.snap.Status = StatusFailed
		e.snap.Error = exception.ExtractErrorMessage(err)
	case !result.Succeeded():
		e.snap.Status = StatusFailed
		e.snap.Error = "one or more models failed"
	default:
		e.snap.Status = StatusCompleted
	}
	logger.Infof("Job %s '%s' finished with status %s.", e.snap.ID, e.spec.Name, e.snap.Status)
}

func (m *Manager) status(e *entry) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return e.snap.Status
}

// lockModels takes the model locks in sorted order so that two jobs never
// wait on each other.
func (m *Manager) lockModels(models []string) func() {
	keys := append([]string(nil), models...)
	sort.Strings(keys)
	unlocks := make([]func(), 0, len(keys))
	for idx, k := range keys {
		if idx > 0 && keys[idx-1] == k {
			continue
		}
		unlocks = append(unlocks, m.locks.Lock(k))
	}
	return func() {
		for idx := len(unlocks) - 1; idx >= 0; idx-- {
			unlocks[idx]()
		}
	}
}

func (e *entry) snapshot() Snapshot {
	s := e.snap
	s.Models = append([]string(nil), e.snap.Models...)
	return s
}
