// Package spawner supervises plugin child processes: spawning, graceful
// stop with a SIGKILL escalation, and background-plugin respawn with
// exponential backoff (component E).
package spawner

import (
	"context"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
	"golang.org/x/time/rate"

	hamrerrors "github.com/hamr-launcher/hamrd/errors"
	"github.com/hamr-launcher/hamrd/logger"
	"github.com/hamr-launcher/hamrd/plugin"
)

var log = logger.ComponentLogger("spawner")

const (
	stopGracePeriod  = 3 * time.Second
	registerGrace    = 10 * time.Second
	backoffInitial   = 1 * time.Second
	backoffMax       = 30 * time.Second
)

// child tracks one live plugin process. stdout/stdin are non-nil only for
// Kind stdio plugins, whose JSON-RPC stream rides the child's own pipes.
type child struct {
	cmd    *exec.Cmd
	done   chan struct{}
	stdout io.ReadCloser
	stdin  io.WriteCloser
}

// Spawner owns every live plugin child process, keyed by plugin id.
type Spawner struct {
	mu       sync.Mutex
	children map[string]*child
	limiters map[string]*rate.Limiter

	// OnExit is invoked (off the locked path) whenever a tracked child exits,
	// so the daemon's event loop can decide whether to respawn it.
	OnExit func(pluginID string, err error)

	// OnSpawn is invoked right after a child process starts successfully,
	// off the locked path, so the daemon can attach a stdio plugin's pipes
	// to the same connection handler an accepted socket uses.
	OnSpawn func(pluginID string, m *plugin.Manifest)
}

// New creates an empty spawner.
func New() *Spawner {
	return &Spawner{
		children: make(map[string]*child),
		limiters: make(map[string]*rate.Limiter),
	}
}

// AllowRespawn reports whether a background plugin's respawn attempt may
// proceed right now, independent of the backoff delay: a token-bucket guard
// (1 attempt every backoffInitial, burst 1) against a crash-looping plugin
// racing its own backoff timer via a manually-triggered reload.
func (s *Spawner) AllowRespawn(pluginID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[pluginID]
	if !ok {
		l = rate.NewLimiter(rate.Every(backoffInitial), 1)
		s.limiters[pluginID] = l
	}
	return l.Allow()
}

// IsSpawned reports whether a plugin id currently has a tracked live
// process.
func (s *Spawner) IsSpawned(pluginID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.children[pluginID]
	return ok
}

// SpawnInDir starts a plugin's process in workingDir. Idempotent: returns
// nil immediately if the plugin is already spawned.
func (s *Spawner) SpawnInDir(m *plugin.Manifest, workingDir string) error {
	s.mu.Lock()
	if _, ok := s.children[m.ID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if m.SpawnCommand == "" {
		return hamrerrors.Newf("plugin %s has no spawn_command", m.ID)
	}
	argv, err := shellquote.Split(m.SpawnCommand)
	if err != nil || len(argv) == 0 {
		return hamrerrors.Wrapf(err, "plugin %s: invalid spawn_command %q", m.ID, m.SpawnCommand)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workingDir

	c := &child{done: make(chan struct{})}
	if m.Kind == plugin.KindStdio {
		// Stdio plugins speak JSON-RPC over stdin/stdout instead of
		// connecting back in over the daemon's socket.
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return hamrerrors.Wrapf(err, "plugin %s: stdout pipe", m.ID)
		}
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return hamrerrors.Wrapf(err, "plugin %s: stdin pipe", m.ID)
		}
		c.stdout, c.stdin = stdout, stdin
	}

	if err := cmd.Start(); err != nil {
		return hamrerrors.Wrapf(err, "spawning plugin %s", m.ID)
	}
	c.cmd = cmd

	s.mu.Lock()
	s.children[m.ID] = c
	s.mu.Unlock()

	go s.supervise(m.ID, c)

	log.Infow("plugin spawned", logger.FieldPlugin, m.ID, logger.FieldPID, cmd.Process.Pid)
	if s.OnSpawn != nil {
		s.OnSpawn(m.ID, m)
	}
	return nil
}

// StdioPipes returns a spawned stdio plugin's stdout/stdin pipes. ok is
// false for non-stdio plugins or ids with no live process.
func (s *Spawner) StdioPipes(pluginID string) (stdout io.ReadCloser, stdin io.WriteCloser, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.children[pluginID]
	if !found || c.stdout == nil {
		return nil, nil, false
	}
	return c.stdout, c.stdin, true
}

func (s *Spawner) supervise(pluginID string, c *child) {
	err := c.cmd.Wait()
	close(c.done)

	s.mu.Lock()
	delete(s.children, pluginID)
	s.mu.Unlock()

	log.Infow("plugin process exited", logger.FieldPlugin, pluginID, logger.FieldError, err)
	if s.OnExit != nil {
		s.OnExit(pluginID, err)
	}
}

// StopPlugin sends SIGTERM, escalating to SIGKILL after the grace period,
// and waits for the process to exit.
func (s *Spawner) StopPlugin(pluginID string) error {
	s.mu.Lock()
	c, ok := s.children[pluginID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Warnw("SIGTERM failed, escalating immediately", logger.FieldPlugin, pluginID, logger.FieldError, err)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(stopGracePeriod):
	}

	if err := c.cmd.Process.Kill(); err != nil {
		log.Warnw("SIGKILL failed", logger.FieldPlugin, pluginID, logger.FieldError, err)
	}
	<-c.done
	return nil
}

// RegisterGraceExceeded waits up to the 10s register grace window for ready
// to fire; if it times out first, the caller should kill the plugin.
func RegisterGraceExceeded(ctx context.Context, ready <-chan struct{}) bool {
	select {
	case <-ready:
		return false
	case <-time.After(registerGrace):
		return true
	case <-ctx.Done():
		return true
	}
}

// NextBackoff advances the exponential backoff sequence (1s, 2s, 4s, ...,
// capped at 30s). A prev of zero or less restarts the sequence at 1s.
func NextBackoff(prev time.Duration) time.Duration {
	if prev <= 0 {
		return backoffInitial
	}
	next := prev * 2
	if next > backoffMax {
		return backoffMax
	}
	return next
}
