package remote

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"hpcbench/pkg/logging"
)

// submitAckRe matches sbatch's one-line acknowledgement.
var submitAckRe = regexp.MustCompile(`Submitted batch job (\d+)`)

// JobStatus is the scheduler's view of one job, from either the live queue
// or the accounting database.
type JobStatus struct {
	JobID    string
	State    string // raw SLURM state, e.g. PENDING, RUNNING, CANCELLED by 1042
	Elapsed  string // live-queue only
	ExitCode string // accounting only
	Nodes    []string
}

// QueueEntry is one row of the user's live queue.
type QueueEntry struct {
	JobID string
	Name  string
	State string
}

// Slurm issues scheduler commands through an Executor. It keeps no job
// bookkeeping of its own: it has no notion of "my jobs", only jobs it is
// told to submit, query or cancel.
type Slurm struct {
	exec Executor
}

// NewSlurm creates a Slurm command layer on top of an executor.
func NewSlurm(exec Executor) *Slurm {
	return &Slurm{exec: exec}
}

// Submit writes the script body to a local temp file, uploads it, marks it
// executable, submits it with sbatch and parses the job id out of the
// acknowledgement. Both the local and remote copies are removed whether or
// not submission succeeds.
func (s *Slurm) Submit(scriptBody, hintName string) (string, error) {
	if hintName == "" {
		hintName = fmt.Sprintf("job_%d.sh", time.Now().Unix())
	}
	remotePath := "/tmp/" + hintName

	local, err := os.CreateTemp("", "hpcbench-*.sh")
	if err != nil {
		return "", fmt.Errorf("failed to create temp script: %w", err)
	}
	localPath := local.Name()
	defer os.Remove(localPath)

	if _, err := local.WriteString(scriptBody); err != nil {
		local.Close()
		return "", fmt.Errorf("failed to write temp script: %w", err)
	}
	if err := local.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp script: %w", err)
	}

	if err := s.exec.UploadFile(localPath, remotePath); err != nil {
		return "", fmt.Errorf("failed to upload batch script: %w", err)
	}
	// The remote copy is transient regardless of what happens next.
	defer s.exec.Run("rm -f " + remotePath)

	if code, _, stderr, err := s.exec.Run("chmod +x " + remotePath); err != nil || code != 0 {
		return "", fmt.Errorf("failed to mark %s executable: exit %d: %s", remotePath, code, firstNonEmpty(stderr, errString(err)))
	}

	code, stdout, stderr, err := s.exec.Run("sbatch " + remotePath)
	if err != nil {
		return "", fmt.Errorf("sbatch transport failure: %w", err)
	}
	if code != 0 {
		return "", fmt.Errorf("sbatch failed with exit %d: %s", code, strings.TrimSpace(stderr))
	}

	m := submitAckRe.FindStringSubmatch(stdout)
	if m == nil {
		return "", fmt.Errorf("sbatch output missing acknowledgement: %q", strings.TrimSpace(stdout))
	}
	jobID := m[1]
	logging.Info("Slurm", "Submitted batch job %s (%s)", jobID, hintName)
	return jobID, nil
}

// Status queries the live queue first, then falls back to accounting for
// jobs that already left the queue. A (nil, nil) return means the job is
// visible in neither view; the caller decides whether that means "not yet
// visible" or "completed very fast".
func (s *Slurm) Status(jobID string) (*JobStatus, error) {
	code, stdout, _, err := s.exec.Run(
		fmt.Sprintf("squeue -j %s --format='%%i,%%T,%%M,%%N' --noheader", jobID))
	if err != nil {
		return nil, fmt.Errorf("squeue failed for job %s: %w", jobID, err)
	}
	if code == 0 {
		if st := parseSqueueLine(stdout, jobID); st != nil {
			return st, nil
		}
	}

	code, stdout, _, err = s.exec.Run(
		fmt.Sprintf("sacct -j %s --format='JobID,State,ExitCode,NodeList' --noheader --parsable2", jobID))
	if err != nil {
		return nil, fmt.Errorf("sacct failed for job %s: %w", jobID, err)
	}
	if code == 0 {
		if st := parseSacctOutput(stdout, jobID); st != nil {
			return st, nil
		}
	}
	return nil, nil
}

// Cancel asks the scheduler to terminate a job.
func (s *Slurm) Cancel(jobID string) error {
	code, _, stderr, err := s.exec.Run("scancel " + jobID)
	if err != nil {
		return fmt.Errorf("scancel transport failure for job %s: %w", jobID, err)
	}
	if code != 0 {
		return fmt.Errorf("scancel %s failed with exit %d: %s", jobID, code, strings.TrimSpace(stderr))
	}
	logging.Info("Slurm", "Cancelled job %s", jobID)
	return nil
}

// Nodes returns the individual hostnames currently assigned to a job, or
// nil while it is still queued. Compressed ranges like "node[001-003]" are
// expanded so callers always see plain hostnames.
func (s *Slurm) Nodes(jobID string) ([]string, error) {
	code, stdout, _, err := s.exec.Run(fmt.Sprintf("squeue -j %s -h -o '%%N'", jobID))
	if err != nil {
		return nil, fmt.Errorf("node query failed for job %s: %w", jobID, err)
	}
	if code != 0 {
		return nil, nil
	}
	raw := strings.TrimSpace(stdout)
	if strings.Contains(raw, "[") {
		return s.ExpandNodeList(raw)
	}
	nodes := splitNodeList(raw)
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes, nil
}

// ExpandNodeList turns a compressed SLURM nodelist into individual
// hostnames using scontrol, which owns the range syntax.
func (s *Slurm) ExpandNodeList(list string) ([]string, error) {
	if list == "" || list == "(null)" {
		return nil, nil
	}
	code, stdout, stderr, err := s.exec.Run(fmt.Sprintf("scontrol show hostnames '%s'", list))
	if err != nil {
		return nil, fmt.Errorf("nodelist expansion failed for %q: %w", list, err)
	}
	if code != 0 {
		return nil, fmt.Errorf("nodelist expansion failed for %q: exit %d: %s", list, code, strings.TrimSpace(stderr))
	}
	var nodes []string
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			nodes = append(nodes, line)
		}
	}
	return nodes, nil
}

// FindByName returns the first live-queue entry whose name contains the
// given fragment, or nil when nothing matches.
func (s *Slurm) FindByName(fragment string) (*QueueEntry, error) {
	entries, err := s.ListUserJobs()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if strings.Contains(strings.ToLower(entries[i].Name), strings.ToLower(fragment)) {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// ListUserJobs returns all of the invoking user's live-queue entries.
func (s *Slurm) ListUserJobs() ([]QueueEntry, error) {
	code, stdout, _, err := s.exec.Run("squeue -u $USER --format='%i,%j,%T' --noheader")
	if err != nil {
		return nil, fmt.Errorf("user queue query failed: %w", err)
	}
	if code != 0 {
		return nil, nil
	}

	var entries []QueueEntry
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 3)
		if len(fields) < 3 {
			continue
		}
		entries = append(entries, QueueEntry{
			JobID: strings.TrimSpace(fields[0]),
			Name:  strings.TrimSpace(fields[1]),
			State: strings.TrimSpace(fields[2]),
		})
	}
	return entries, nil
}

// parseSqueueLine parses one comma-separated live-queue record:
// jobid,state,elapsed,nodelist.
func parseSqueueLine(out, jobID string) *JobStatus {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 4)
		if len(fields) < 4 || strings.TrimSpace(fields[0]) != jobID {
			continue
		}
		return &JobStatus{
			JobID:   jobID,
			State:   strings.TrimSpace(fields[1]),
			Elapsed: strings.TrimSpace(fields[2]),
			Nodes:   splitNodeList(strings.TrimSpace(fields[3])),
		}
	}
	return nil
}

// parseSacctOutput parses pipe-separated accounting records:
// jobid|state|exitcode|nodelist. sacct emits one row per job step; only
// the row for the job id itself counts.
func parseSacctOutput(out, jobID string) *JobStatus {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 4 || fields[0] != jobID {
			continue
		}
		return &JobStatus{
			JobID:    jobID,
			State:    strings.TrimSpace(fields[1]),
			ExitCode: strings.TrimSpace(fields[2]),
			Nodes:    splitNodeList(strings.TrimSpace(fields[3])),
		}
	}
	return nil
}

// splitNodeList splits a SLURM nodelist on commas outside brackets, so a
// compressed range like "node[001-003]" stays one element. Callers that
// need individual hostnames go through ExpandNodeList.
func splitNodeList(list string) []string {
	if list == "" || list == "(null)" || strings.EqualFold(list, "None assigned") {
		return nil
	}
	var nodes []string
	depth, start := 0, 0
	for i, r := range list {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				if part := strings.TrimSpace(list[start:i]); part != "" {
					nodes = append(nodes, part)
				}
				start = i + 1
			}
		}
	}
	if part := strings.TrimSpace(list[start:]); part != "" {
		nodes = append(nodes, part)
	}
	return nodes
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
