package lifecycle

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/remote"
	"hpcbench/pkg/logging"
)

// Scheduler is the slice of the scheduler command layer the manager
// needs. *remote.Slurm satisfies it; tests substitute a fake.
type Scheduler interface {
	Submit(scriptBody, hintName string) (string, error)
	Status(jobID string) (*remote.JobStatus, error)
	Cancel(jobID string) error
	Nodes(jobID string) ([]string, error)
	FindByName(fragment string) (*remote.QueueEntry, error)
	ListUserJobs() ([]remote.QueueEntry, error)
}

// Manager tracks the jobs of one kind (services, clients or monitors).
// All table access is mutex-guarded; refreshes for different jobs may run
// concurrently.
type Manager struct {
	kind      string
	scheduler Scheduler
	policy    config.VanishedJobPolicy

	mu    sync.RWMutex
	jobs  map[string]*JobInfo // internal id -> record
	hosts map[string]string   // internal id -> resolved first node
}

// NewManager creates a manager for one job kind.
func NewManager(kind string, scheduler Scheduler, policy config.VanishedJobPolicy) *Manager {
	if policy == "" {
		policy = config.VanishedCompleted
	}
	return &Manager{
		kind:      kind,
		scheduler: scheduler,
		policy:    policy,
		jobs:      make(map[string]*JobInfo),
		hosts:     make(map[string]string),
	}
}

// newInternalID returns a short id unique enough for one user's sessions.
// It goes into scheduler job names, so it stays short and hex.
func newInternalID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// Start renders the unit's script and submits it. targetHost is passed
// through to script generation and is empty for services.
func (m *Manager) Start(spec job.Spec, targetHost string) (*JobInfo, error) {
	internalID := newInternalID()

	script, err := spec.GenerateScript(internalID, targetHost)
	if err != nil {
		return nil, fmt.Errorf("failed to render script for %s: %w", spec.JobName(), err)
	}

	hint := fmt.Sprintf("%s_%s.sh", spec.JobName(), internalID)
	jobID, err := m.scheduler.Submit(script, hint)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s: %w", spec.JobName(), err)
	}

	info := &JobInfo{
		InternalID:     internalID,
		SchedulerJobID: jobID,
		Name:           spec.JobName(),
		Kind:           m.kind,
		Status:         StatusPending,
		SubmittedAt:    time.Now(),
	}
	m.mu.Lock()
	m.jobs[internalID] = info
	m.mu.Unlock()

	logging.Info("Lifecycle", "Started %s %s (internal %s, job %s)", m.kind, spec.JobName(), internalID, jobID)
	snapshot := *info
	return &snapshot, nil
}

// Get returns a snapshot of one tracked job.
func (m *Manager) Get(internalID string) (*JobInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.jobs[internalID]
	if !ok {
		return nil, false
	}
	snapshot := *info
	return &snapshot, true
}

// RefreshStatus re-queries the scheduler for one job and applies the
// result to the tracked record. Terminal jobs are returned as-is.
func (m *Manager) RefreshStatus(internalID string) (*JobInfo, error) {
	m.mu.RLock()
	info, ok := m.jobs[internalID]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("unknown %s job %s", m.kind, internalID)
	}
	if info.Status.Terminal() {
		snapshot := *info
		m.mu.RUnlock()
		return &snapshot, nil
	}
	jobID := info.SchedulerJobID
	m.mu.RUnlock()

	st, err := m.scheduler.Status(jobID)
	if err != nil {
		return nil, fmt.Errorf("status refresh failed for %s: %w", internalID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// The table may have been reset or cleaned while the scheduler call
	// ran outside the lock.
	info, ok = m.jobs[internalID]
	if !ok {
		return nil, fmt.Errorf("%s job %s is no longer tracked", m.kind, internalID)
	}

	if st == nil {
		// Gone from both the live queue and accounting while we still
		// tracked it as active.
		if m.policy == config.VanishedCompleted {
			logging.Info("Lifecycle", "Job %s (%s) left both scheduler views, marking completed", jobID, info.Name)
			info.Status = StatusCompleted
			info.CompletedAt = time.Now()
		} else {
			logging.Warn("Lifecycle", "Job %s (%s) is in neither scheduler view, keeping status %s", jobID, info.Name, info.Status)
		}
		snapshot := *info
		return &snapshot, nil
	}

	next := statusFromSlurm(st.State)
	if next != info.Status {
		logging.Debug("Lifecycle", "Job %s (%s): %s -> %s (raw %q)", jobID, info.Name, info.Status, next, st.State)
	}
	if next == StatusRunning && info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	if next.Terminal() && info.CompletedAt.IsZero() {
		info.CompletedAt = time.Now()
	}
	info.Status = next
	if st.Elapsed != "" {
		info.Elapsed = st.Elapsed
	}
	if st.ExitCode != "" {
		info.ExitCode = st.ExitCode
	}
	if len(st.Nodes) > 0 {
		info.Nodes = st.Nodes
		// Compressed ranges like "node[001-003]" are not hostnames; leave
		// those to ResolveHost, which expands them.
		if !strings.Contains(st.Nodes[0], "[") {
			m.hosts[internalID] = st.Nodes[0]
		}
	}

	snapshot := *info
	return &snapshot, nil
}

// List refreshes every non-terminal job and returns snapshots of the
// jobs still pending or running, sorted by submission time. Terminal
// jobs stay tracked (see Tracked) but are not part of the live listing.
// Refreshes run concurrently; one failed refresh fails the listing.
func (m *Manager) List() ([]JobInfo, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.jobs))
	for id, info := range m.jobs {
		if !info.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := m.RefreshStatus(id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobInfo, 0, len(m.jobs))
	for _, info := range m.jobs {
		if info.Status.Terminal() {
			continue
		}
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// Tracked returns snapshots of all tracked jobs without touching the
// scheduler.
func (m *Manager) Tracked() []JobInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobInfo, 0, len(m.jobs))
	for _, info := range m.jobs {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

// Stop cancels the job the reference points at. Resolution order: exact
// internal id, exact scheduler job id, substring of a tracked name, then
// a name query against the live queue. The bool reports whether anything
// was found to cancel.
func (m *Manager) Stop(reference string) (bool, error) {
	if internalID := m.resolveTracked(reference); internalID != "" {
		return true, m.cancelTracked(internalID)
	}

	// Not ours (or no longer tracked): ask the live queue by name.
	entry, err := m.scheduler.FindByName(reference)
	if err != nil {
		return false, err
	}
	if entry == nil {
		logging.Warn("Lifecycle", "No %s job matches reference %q", m.kind, reference)
		return false, nil
	}
	logging.Info("Lifecycle", "Cancelling untracked job %s (%s) matching %q", entry.JobID, entry.Name, reference)
	return true, m.scheduler.Cancel(entry.JobID)
}

// resolveTracked maps a reference onto a tracked internal id, or "".
func (m *Manager) resolveTracked(reference string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.jobs[reference]; ok {
		return reference
	}
	for id, info := range m.jobs {
		if info.SchedulerJobID == reference {
			return id
		}
	}
	for id, info := range m.jobs {
		if strings.Contains(strings.ToLower(info.Name), strings.ToLower(reference)) {
			return id
		}
	}
	return ""
}

func (m *Manager) cancelTracked(internalID string) error {
	m.mu.RLock()
	info, ok := m.jobs[internalID]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	jobID := info.SchedulerJobID
	terminal := info.Status.Terminal()
	m.mu.RUnlock()

	if !terminal {
		if err := m.scheduler.Cancel(jobID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Re-resolve: a concurrent Reset or cleanup may have dropped the
	// record while scancel ran.
	info, ok = m.jobs[internalID]
	if ok && !info.Status.Terminal() {
		info.Status = StatusCancelled
		info.CompletedAt = time.Now()
	}
	return nil
}

// StopAll cancels every non-terminal tracked job and reports per-job
// results; it does not give up on the first failure.
func (m *Manager) StopAll() (stopped int, errs []error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.jobs))
	for id, info := range m.jobs {
		if !info.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.cancelTracked(id); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", id, err))
			continue
		}
		stopped++
	}
	return stopped, errs
}

// ResolveHost returns the first allocated node of a tracked job, or ""
// while it is still queued. Resolved hosts are cached; compute nodes do
// not move once assigned.
func (m *Manager) ResolveHost(internalID string) (string, error) {
	m.mu.RLock()
	if host, ok := m.hosts[internalID]; ok {
		m.mu.RUnlock()
		return host, nil
	}
	info, ok := m.jobs[internalID]
	if !ok {
		m.mu.RUnlock()
		return "", fmt.Errorf("unknown %s job %s", m.kind, internalID)
	}
	jobID := info.SchedulerJobID
	m.mu.RUnlock()

	nodes, err := m.scheduler.Nodes(jobID)
	if err != nil {
		return "", fmt.Errorf("host resolution failed for %s: %w", internalID, err)
	}
	if len(nodes) == 0 {
		return "", nil
	}

	m.mu.Lock()
	m.hosts[internalID] = nodes[0]
	if info, ok := m.jobs[internalID]; ok {
		info.Nodes = nodes
	}
	m.mu.Unlock()
	return nodes[0], nil
}

// Find resolves a reference (internal id, scheduler id or tracked name
// substring) to a tracked job snapshot. Unlike Stop it never consults the
// live queue.
func (m *Manager) Find(reference string) (*JobInfo, bool) {
	id := m.resolveTracked(reference)
	if id == "" {
		return nil, false
	}
	return m.Get(id)
}

// Reset forgets every tracked job without cancelling anything on the
// scheduler.
func (m *Manager) Reset() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.jobs)
	m.jobs = make(map[string]*JobInfo)
	m.hosts = make(map[string]string)
	return n
}

// CleanupCompleted drops terminal jobs from the table and returns how
// many were removed.
func (m *Manager) CleanupCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, info := range m.jobs {
		if info.Status.Terminal() {
			delete(m.jobs, id)
			delete(m.hosts, id)
			removed++
		}
	}
	return removed
}
