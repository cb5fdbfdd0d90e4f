package remote

import (
	"fmt"
	"io"
	"net"
	"sync"

	"hpcbench/pkg/logging"
)

// Tunnel is a bidirectional port forward from a local port to a compute
// node reached through the SSH connection. Compute nodes are typically not
// internet-routable, so this is the only path from the orchestrator's
// machine to a running service.
type Tunnel struct {
	ID         string
	RemoteHost string
	RemotePort int
	LocalPort  int

	listener net.Listener
	done     chan struct{}
	once     sync.Once
}

func (t *Tunnel) close() {
	t.once.Do(func() {
		close(t.done)
		t.listener.Close()
	})
}

// CreateTunnel opens a local listener and forwards each accepted
// connection to remoteHost:remotePort, dialed from the login node.
func (e *SSHExecutor) CreateTunnel(remoteHost string, remotePort, localPort int) (*Tunnel, error) {
	if e.client == nil {
		return nil, fmt.Errorf("not connected to remote host")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", localPort))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on local port %d: %w", localPort, err)
	}

	t := &Tunnel{
		ID:         fmt.Sprintf("%s:%d->%d", remoteHost, remotePort, localPort),
		RemoteHost: remoteHost,
		RemotePort: remotePort,
		LocalPort:  localPort,
		listener:   listener,
		done:       make(chan struct{}),
	}

	e.mu.Lock()
	if _, exists := e.tunnels[t.ID]; exists {
		e.mu.Unlock()
		listener.Close()
		return nil, fmt.Errorf("tunnel %s already open", t.ID)
	}
	e.tunnels[t.ID] = t
	e.mu.Unlock()

	go e.serveTunnel(t)
	logging.Info("Remote", "Opened tunnel localhost:%d -> %s:%d", localPort, remoteHost, remotePort)
	return t, nil
}

func (e *SSHExecutor) serveTunnel(t *Tunnel) {
	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				logging.Warn("Remote", "Tunnel %s accept failed: %v", t.ID, err)
				return
			}
		}

		remote, err := e.client.Dial("tcp", net.JoinHostPort(t.RemoteHost, fmt.Sprintf("%d", t.RemotePort)))
		if err != nil {
			logging.Error("Remote", err, "Tunnel %s failed to reach remote endpoint", t.ID)
			local.Close()
			continue
		}

		go proxy(local, remote)
	}
}

func proxy(a, b net.Conn) {
	defer a.Close()
	defer b.Close()
	done := make(chan struct{}, 2)
	go func() { io.Copy(a, b); done <- struct{}{} }()
	go func() { io.Copy(b, a); done <- struct{}{} }()
	<-done
}

// CloseTunnel closes one tunnel by id.
func (e *SSHExecutor) CloseTunnel(id string) error {
	e.mu.Lock()
	t, exists := e.tunnels[id]
	if exists {
		delete(e.tunnels, id)
	}
	e.mu.Unlock()

	if !exists {
		return fmt.Errorf("tunnel %s not found", id)
	}
	t.close()
	logging.Info("Remote", "Closed tunnel %s", id)
	return nil
}

// ListTunnels returns all open tunnels.
func (e *SSHExecutor) ListTunnels() []*Tunnel {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Tunnel, 0, len(e.tunnels))
	for _, t := range e.tunnels {
		out = append(out, t)
	}
	return out
}
