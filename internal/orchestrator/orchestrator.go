// Package orchestrator composes the remote executor, the job registry and
// the per-kind lifecycle managers into benchmark sessions: a service, an
// optional client aimed at it, and optional monitors, all running as batch
// jobs on the same cluster.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/lifecycle"
	"hpcbench/internal/recipe"
	"hpcbench/internal/remote"
	"hpcbench/pkg/logging"
)

// Session ties together the jobs started from one recipe.
type Session struct {
	ID        string
	ServiceID string // internal id, empty when the recipe had no service block
	ClientID  string // internal id, empty when the recipe had no client block
}

// BulkReport is the partial-success result of a bulk operation. Bulk
// operations never fail as a whole; they report what worked and what did
// not.
type BulkReport struct {
	Stopped int
	Failed  []string // one human-readable reason per failed item
}

// Listing is the comprehensive job view: everything tracked by the
// managers plus live-queue entries this process never submitted.
type Listing struct {
	Tracked    []lifecycle.JobInfo
	Discovered []remote.QueueEntry
}

// Orchestrator is the top-level coordinator. It is safe for concurrent
// use; the managers guard their own tables and session state is guarded
// here.
type Orchestrator struct {
	cfg      *config.Config
	exec     remote.Executor
	slurm    *remote.Slurm
	registry *job.Registry

	services *lifecycle.Manager
	clients  *lifecycle.Manager
	monitors *lifecycle.Manager

	mu         sync.Mutex
	sessions   map[string]*Session
	sessionSeq int
}

// New wires an orchestrator from its collaborators. The executor is
// expected to be connected by the caller (or connectable via Connect).
func New(cfg *config.Config, exec remote.Executor, registry *job.Registry) *Orchestrator {
	slurm := remote.NewSlurm(exec)
	policy := cfg.Slurm.VanishedJobPolicy
	return &Orchestrator{
		cfg:      cfg,
		exec:     exec,
		slurm:    slurm,
		registry: registry,
		services: lifecycle.NewManager("service", slurm, policy),
		clients:  lifecycle.NewManager("client", slurm, policy),
		monitors: lifecycle.NewManager("monitor", slurm, policy),
		sessions: make(map[string]*Session),
	}
}

// Connect opens the SSH connection.
func (o *Orchestrator) Connect() error { return o.exec.Connect() }

// Close disconnects; open tunnels die with the connection.
func (o *Orchestrator) Close() error { return o.exec.Close() }

// Services exposes the service manager for status surfaces.
func (o *Orchestrator) Services() *lifecycle.Manager { return o.services }

// Clients exposes the client manager for status surfaces.
func (o *Orchestrator) Clients() *lifecycle.Manager { return o.clients }

// Monitors exposes the monitor manager for status surfaces.
func (o *Orchestrator) Monitors() *lifecycle.Manager { return o.monitors }

// StartSession starts the recipe's service (if any), waits for its host
// within the configured retry attempts, then starts the recipe's client (if
// any) against that host. targetServiceID optionally points the client at
// an already running tracked service instead of one from this recipe.
//
// An unresolved host is not fatal: the client is submitted anyway with no
// target export and must rely on an explicit endpoint parameter, or fail
// inside the remote job.
func (o *Orchestrator) StartSession(ctx context.Context, rec *recipe.Recipe, targetServiceID string) (string, error) {
	session := &Session{}

	if rec.Service != nil {
		svc, err := o.registry.CreateService(rec.Service, o.cfg)
		if err != nil {
			return "", err
		}
		info, err := o.services.Start(svc, "")
		if err != nil {
			return "", err
		}
		session.ServiceID = info.InternalID
	}

	if rec.Client != nil {
		hostSource := targetServiceID
		if hostSource == "" {
			hostSource = session.ServiceID
		}

		host := ""
		if hostSource != "" {
			var err error
			host, err = o.awaitHost(ctx, hostSource)
			if err != nil {
				return "", err
			}
		}

		cl, err := o.registry.CreateClient(rec.Client, o.cfg)
		if err != nil {
			return "", err
		}
		if err := o.stageClientScript(cl); err != nil {
			return "", err
		}
		info, err := o.clients.Start(cl, host)
		if err != nil {
			return "", err
		}
		session.ClientID = info.InternalID
	}

	o.mu.Lock()
	o.sessionSeq++
	session.ID = fmt.Sprintf("session_%d", o.sessionSeq)
	o.sessions[session.ID] = session
	o.mu.Unlock()

	logging.Info("Orchestrator", "Started %s (service=%s client=%s)", session.ID, session.ServiceID, session.ClientID)
	return session.ID, nil
}

// stageClientScript copies a locally kept benchmark script into the
// cluster's shared scripts directory before the client job runs. The
// directory path may carry shell variables like $HOME, so the upload
// lands in /tmp and a shell move resolves the destination. Recipes
// without a local_path expect the script to exist on the cluster
// already.
func (o *Orchestrator) stageClientScript(cl *job.Client) error {
	local := cl.Script.LocalPath
	if local == "" {
		return nil
	}
	name := cl.ScriptName()
	staging := "/tmp/" + name
	if err := o.exec.UploadFile(local, staging); err != nil {
		return fmt.Errorf("failed to upload benchmark script %s: %w", local, err)
	}

	dir := o.cfg.Benchmark.ScriptsDir
	code, _, stderr, err := o.exec.Run(fmt.Sprintf("mkdir -p %s && mv %s %s/%s", dir, staging, dir, name))
	if err != nil {
		return fmt.Errorf("failed to stage benchmark script %s: %w", name, err)
	}
	if code != 0 {
		return fmt.Errorf("failed to stage benchmark script %s: exit %d: %s", name, code, strings.TrimSpace(stderr))
	}
	logging.Info("Orchestrator", "Staged benchmark script %s into %s", name, dir)
	return nil
}

// awaitHost polls for the service's assigned node within the configured
// attempt limit. It returns "" when the attempts run out; only context
// cancellation and scheduler errors are returned as errors.
func (o *Orchestrator) awaitHost(ctx context.Context, serviceID string) (string, error) {
	attempts := o.cfg.Discovery.MaxAttempts
	delay := o.cfg.Discovery.Delay

	for attempt := 1; attempt <= attempts; attempt++ {
		host, err := o.services.ResolveHost(serviceID)
		if err != nil {
			return "", err
		}
		if host != "" {
			logging.Info("Orchestrator", "Service %s is on %s (attempt %d)", serviceID, host, attempt)
			return host, nil
		}
		if attempt == attempts {
			break
		}
		logging.Debug("Orchestrator", "Service %s not assigned yet, retrying in %s (%d/%d)", serviceID, delay, attempt, attempts)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	logging.Warn("Orchestrator", "Service %s has no assigned host after %d attempts, starting client without one", serviceID, attempts)
	return "", nil
}

// StopSession cancels the session's client first, then its service. It
// reports true only when everything it tried succeeded; partial failures
// come back as a joined error alongside false.
func (o *Orchestrator) StopSession(sessionID string) (bool, error) {
	o.mu.Lock()
	session, ok := o.sessions[sessionID]
	o.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("unknown session %s", sessionID)
	}

	var errs []error
	if session.ClientID != "" {
		if _, err := o.clients.Stop(session.ClientID); err != nil {
			errs = append(errs, fmt.Errorf("stop client %s: %w", session.ClientID, err))
		}
	}
	if session.ServiceID != "" {
		if _, err := o.services.Stop(session.ServiceID); err != nil {
			errs = append(errs, fmt.Errorf("stop service %s: %w", session.ServiceID, err))
		}
	}

	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	logging.Info("Orchestrator", "Stopped %s", sessionID)
	return true, nil
}

// StartMonitor starts a monitoring service (prometheus, grafana) tracked
// separately from the benchmarked services.
func (o *Orchestrator) StartMonitor(spec *recipe.ServiceSpec) (*lifecycle.JobInfo, error) {
	svc, err := o.registry.CreateService(spec, o.cfg)
	if err != nil {
		return nil, err
	}
	return o.monitors.Start(svc, "")
}

// StopAllServices cancels every tracked non-terminal service plus every
// live-queue job that looks like a service this tool started in an
// earlier process (job name prefixed by a registered service name) but is
// not tracked here.
func (o *Orchestrator) StopAllServices() *BulkReport {
	report := &BulkReport{}

	stopped, errs := o.services.StopAll()
	report.Stopped += stopped
	for _, err := range errs {
		report.Failed = append(report.Failed, err.Error())
	}

	entries, err := o.slurm.ListUserJobs()
	if err != nil {
		report.Failed = append(report.Failed, fmt.Sprintf("queue listing: %v", err))
		return report
	}

	tracked := o.trackedJobIDs()
	for _, entry := range entries {
		if tracked[entry.JobID] || !o.looksLikeRegisteredService(entry.Name) {
			continue
		}
		if err := o.slurm.Cancel(entry.JobID); err != nil {
			report.Failed = append(report.Failed, fmt.Sprintf("cancel %s (%s): %v", entry.JobID, entry.Name, err))
			continue
		}
		report.Stopped++
	}
	return report
}

// ClearAllState forgets all local tracking and sessions. Nothing on the
// scheduler is touched: the jobs keep running.
func (o *Orchestrator) ClearAllState() int {
	forgotten := o.services.Reset() + o.clients.Reset() + o.monitors.Reset()

	o.mu.Lock()
	o.sessions = make(map[string]*Session)
	o.mu.Unlock()

	logging.Info("Orchestrator", "Cleared local tracking for %d jobs", forgotten)
	return forgotten
}

// ListAll refreshes every tracked job and pairs the result with
// live-queue entries this process is not tracking.
func (o *Orchestrator) ListAll() (*Listing, error) {
	listing := &Listing{}
	for _, m := range []*lifecycle.Manager{o.services, o.clients, o.monitors} {
		infos, err := m.List()
		if err != nil {
			return nil, err
		}
		listing.Tracked = append(listing.Tracked, infos...)
	}

	entries, err := o.slurm.ListUserJobs()
	if err != nil {
		return nil, err
	}
	tracked := o.trackedJobIDs()
	for _, entry := range entries {
		if !tracked[entry.JobID] {
			listing.Discovered = append(listing.Discovered, entry)
		}
	}
	return listing, nil
}

// OpenServiceTunnel resolves the referenced service's node and forwards a
// local port to it.
func (o *Orchestrator) OpenServiceTunnel(reference string, remotePort, localPort int) (*remote.Tunnel, error) {
	info, ok := o.services.Find(reference)
	if !ok {
		info, ok = o.monitors.Find(reference)
	}
	if !ok {
		return nil, fmt.Errorf("no tracked service matches %q", reference)
	}

	manager := o.services
	if info.Kind == "monitor" {
		manager = o.monitors
	}
	host, err := manager.ResolveHost(info.InternalID)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, fmt.Errorf("service %s has no assigned node yet", info.Name)
	}
	return o.exec.CreateTunnel(host, remotePort, localPort)
}

// QueryMetrics runs one instant PromQL query against a tracked prometheus
// monitor. Compute nodes are unreachable from outside, so the query is
// executed as curl on the login node.
func (o *Orchestrator) QueryMetrics(reference, query string) (string, error) {
	info, ok := o.monitors.Find(reference)
	if !ok {
		return "", fmt.Errorf("no tracked monitor matches %q", reference)
	}
	host, err := o.monitors.ResolveHost(info.InternalID)
	if err != nil {
		return "", err
	}
	if host == "" {
		return "", fmt.Errorf("monitor %s has no assigned node yet", info.Name)
	}

	cmd := fmt.Sprintf("curl -s 'http://%s:9090/api/v1/query?query=%s'", host, url.QueryEscape(query))
	code, stdout, stderr, err := o.exec.Run(cmd)
	if err != nil {
		return "", fmt.Errorf("metrics query transport failure: %w", err)
	}
	if code != 0 {
		return "", fmt.Errorf("metrics query failed with exit %d: %s", code, strings.TrimSpace(stderr))
	}
	return stdout, nil
}

func (o *Orchestrator) trackedJobIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, m := range []*lifecycle.Manager{o.services, o.clients, o.monitors} {
		for _, info := range m.Tracked() {
			ids[info.SchedulerJobID] = true
		}
	}
	return ids
}

// looksLikeRegisteredService matches scheduler job names of the form
// <name>_<internalId> against the registered service names.
func (o *Orchestrator) looksLikeRegisteredService(jobName string) bool {
	for _, name := range o.registry.ListServices() {
		if strings.HasPrefix(jobName, name+"_") {
			return true
		}
	}
	return false
}
