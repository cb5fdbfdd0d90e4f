// Package remote is the only component that talks to the cluster. It
// provides an SSH-backed Executor for shell commands, file transfer and
// port forwarding, and a Slurm command layer on top of it for job
// submission, status queries and cancellation.
package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"hpcbench/internal/config"
	"hpcbench/pkg/logging"
)

// Executor is a session to one remote host. Operations never retry
// internally; retry policy belongs to callers. Implementations must be
// safe for use from a single goroutine; callers that share one executor
// across goroutines serialize access themselves.
type Executor interface {
	// Connect authenticates by key or password. Calling it on an already
	// connected executor is a no-op.
	Connect() error
	// Close tears down the session and, as a side effect, every tunnel
	// opened through it.
	Close() error

	// Run executes cmd synchronously and blocks until completion. There
	// is no implicit timeout. A non-zero exit code is not an error; err
	// reports transport failures only.
	Run(cmd string) (exitCode int, stdout, stderr string, err error)

	UploadFile(localPath, remotePath string) error
	DownloadFile(remotePath, localPath string) error

	// CreateTunnel forwards localPort on this machine to
	// remoteHost:remotePort, dialed from the connected login node.
	CreateTunnel(remoteHost string, remotePort, localPort int) (*Tunnel, error)
	CloseTunnel(id string) error
	ListTunnels() []*Tunnel
}

// SSHExecutor implements Executor over golang.org/x/crypto/ssh.
type SSHExecutor struct {
	cfg    config.SSHConfig
	client *ssh.Client

	mu      sync.Mutex
	tunnels map[string]*Tunnel
}

// NewSSHExecutor creates an executor for the given connection config. No
// network activity happens until Connect.
func NewSSHExecutor(cfg config.SSHConfig) *SSHExecutor {
	return &SSHExecutor{
		cfg:     cfg,
		tunnels: make(map[string]*Tunnel),
	}
}

// Connect establishes the SSH connection.
func (e *SSHExecutor) Connect() error {
	if e.client != nil {
		return nil
	}

	auth, err := e.authMethods()
	if err != nil {
		return err
	}

	sshCfg := &ssh.ClientConfig{
		User: e.cfg.Username,
		Auth: auth,
		// Cluster login nodes rotate behind load balancers; host key
		// pinning is the operator's job via known_hosts when needed.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	addr := net.JoinHostPort(e.cfg.Hostname, fmt.Sprintf("%d", e.cfg.Port))
	client, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	e.client = client
	logging.Info("Remote", "Connected to %s as %s", e.cfg.Hostname, e.cfg.Username)
	return nil
}

func (e *SSHExecutor) authMethods() ([]ssh.AuthMethod, error) {
	if e.cfg.KeyFile != "" {
		path := expandHome(e.cfg.KeyFile)
		key, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key %s: %w", path, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ssh key %s: %w", path, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	if e.cfg.Password == "" {
		return nil, fmt.Errorf("ssh config needs key_file or password")
	}
	password := e.cfg.Password
	return []ssh.AuthMethod{
		ssh.Password(password),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range questions {
				answers[i] = password
			}
			return answers, nil
		}),
	}, nil
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Close disconnects and closes all open tunnels.
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	for _, t := range e.tunnels {
		t.close()
	}
	e.tunnels = make(map[string]*Tunnel)
	e.mu.Unlock()

	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	logging.Info("Remote", "Disconnected from %s", e.cfg.Hostname)
	return err
}

// Run executes a command on the remote host.
func (e *SSHExecutor) Run(cmd string) (int, string, string, error) {
	if e.client == nil {
		return -1, "", "", fmt.Errorf("not connected to remote host")
	}

	session, err := e.client.NewSession()
	if err != nil {
		return -1, "", "", fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr safeBuffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	exitCode := 0
	if err := session.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitStatus()
		} else {
			return -1, stdout.String(), stderr.String(), fmt.Errorf("command transport failure: %w", err)
		}
	}

	logging.Debug("Remote", "Ran %q (exit %d)", cmd, exitCode)
	return exitCode, stdout.String(), stderr.String(), nil
}

// UploadFile copies a local file to the remote host via SFTP.
func (e *SSHExecutor) UploadFile(localPath, remotePath string) error {
	if e.client == nil {
		return fmt.Errorf("not connected to remote host")
	}

	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer local.Close()

	client, err := sftp.NewClient(e.client)
	if err != nil {
		return fmt.Errorf("failed to start sftp: %w", err)
	}
	defer client.Close()

	remote, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer remote.Close()

	n, err := remote.ReadFrom(local)
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", localPath, remotePath, err)
	}
	logging.Debug("Remote", "Uploaded %s to %s (%d bytes)", localPath, remotePath, n)
	return nil
}

// DownloadFile copies a remote file to the local machine via SFTP.
func (e *SSHExecutor) DownloadFile(remotePath, localPath string) error {
	if e.client == nil {
		return fmt.Errorf("not connected to remote host")
	}

	client, err := sftp.NewClient(e.client)
	if err != nil {
		return fmt.Errorf("failed to start sftp: %w", err)
	}
	defer client.Close()

	remote, err := client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer remote.Close()

	local, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer local.Close()

	n, err := remote.WriteTo(local)
	if err != nil {
		return fmt.Errorf("failed to download %s to %s: %w", remotePath, localPath, err)
	}
	logging.Debug("Remote", "Downloaded %s to %s (%d bytes)", remotePath, localPath, n)
	return nil
}

// safeBuffer is a minimal strings-building writer; ssh sessions write from
// a single goroutine but the indirection keeps Run self-contained.
type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
