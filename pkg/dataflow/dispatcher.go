package dataflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mofa-studio/mofa-core/internal/logging"
	"github.com/mofa-studio/mofa-core/internal/metrics"
	"github.com/mofa-studio/mofa-core/pkg/hub"
)

// Launcher starts and stops the external dataflow process. ExecLauncher is
// the production implementation; tests inject a fake.
type Launcher interface {
	// Start launches the dataflow for the given spec file and returns its
	// dataflow_id once the process reports one on stdout/stderr.
	Start(ctx context.Context, specPath string, env map[string]string) (dataflowID string, err error)
	// Stop requests a graceful shutdown of the previously started dataflow.
	Stop(ctx context.Context, dataflowID string) error
}

// dataflowIDPrefixes are the forms a launched process is expected to print
// its dataflow_id in, on either stdout or stderr.
var dataflowIDPrefixes = []string{"dataflow_id=", "dataflow_id: "}

// parseDataflowID scans a line for one of the recognized dataflow_id
// prefixes and returns the trimmed value following it.
func parseDataflowID(line string) (string, bool) {
	for _, prefix := range dataflowIDPrefixes {
		if idx := strings.Index(line, prefix); idx >= 0 {
			return strings.TrimSpace(line[idx+len(prefix):]), true
		}
	}
	return "", false
}

// ExecLauncher launches the dataflow as a child process via `dora start`,
// grounded on the exec.CommandContext + env-injection pattern external
// process supervisors use to wrap a CLI tool.
type ExecLauncher struct {
	// Executable is the dataflow CLI binary, e.g. "dora".
	Executable string
	// StartArgs precede the spec path, e.g. []string{"start"} for
	// `dora start <spec>`.
	StartArgs []string
	// StopArgs are passed to Executable to stop a running dataflow by id.
	StopArgs func(dataflowID string) []string

	mu     sync.Mutex
	cmds   map[string]*exec.Cmd
}

func (l *ExecLauncher) Start(ctx context.Context, specPath string, env map[string]string) (string, error) {
	args := append(append([]string{}, l.StartArgs...), specPath)
	cmd := exec.CommandContext(ctx, l.Executable, args...)
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("dataflow: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("dataflow: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("dataflow: start %s: %w", l.Executable, err)
	}

	idCh := make(chan string, 1)
	scan := func(r io.Reader) {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if id, ok := parseDataflowID(sc.Text()); ok {
				select {
				case idCh <- id:
				default:
				}
			}
		}
	}
	go scan(stdout)
	go scan(stderr)

	select {
	case id := <-idCh:
		l.mu.Lock()
		if l.cmds == nil {
			l.cmds = make(map[string]*exec.Cmd)
		}
		l.cmds[id] = cmd
		l.mu.Unlock()
		return id, nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return "", ctx.Err()
	}
}

func (l *ExecLauncher) Stop(ctx context.Context, dataflowID string) error {
	if l.StopArgs != nil {
		stop := exec.CommandContext(ctx, l.Executable, l.StopArgs(dataflowID)...)
		if err := stop.Run(); err != nil {
			return fmt.Errorf("dataflow: stop %s: %w", dataflowID, err)
		}
	}

	l.mu.Lock()
	cmd := l.cmds[dataflowID]
	delete(l.cmds, dataflowID)
	l.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Wait()
	}
	return nil
}

// BridgeRunner is one per-node worker bridge the Dispatcher supervises
// alongside the external dataflow process (spec.md §4.4, §4.5).
type BridgeRunner interface {
	Name() string
	Run(ctx context.Context) error
}

// shutdownGrace is how long Stop waits for bridge goroutines to exit after
// cancellation before giving up and detaching them.
const shutdownGrace = 5 * time.Second

// Dispatcher is the Dataflow Dispatcher (spec.md §4.4): it launches the
// external dataflow process, starts one worker goroutine per BridgeRunner,
// and tracks lifecycle phase in the shared Hub so the UI can observe it.
type Dispatcher struct {
	launcher Launcher
	bridges  []BridgeRunner
	hub      *hub.Hub
	logger   logging.Logger
	metrics  *metrics.Registry

	mu         sync.Mutex
	cancel     context.CancelFunc
	dataflowID string
	wg         sync.WaitGroup
}

// Config configures a Dispatcher.
type Config struct {
	Launcher Launcher
	Bridges  []BridgeRunner
	Hub      *hub.Hub
	Logger   logging.Logger
	Metrics  *metrics.Registry
}

// NewDispatcher constructs a Dispatcher in PhaseStopped.
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Dispatcher{
		launcher: cfg.Launcher,
		bridges:  cfg.Bridges,
		hub:      cfg.Hub,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

// Phase reports the current lifecycle phase.
func (d *Dispatcher) Phase() hub.ConnectionPhase {
	if d.hub == nil {
		return hub.PhaseStopped
	}
	return d.hub.Status.Peek().Phase
}

// Start validates the spec file exists, launches the external dataflow
// process, starts every bridge worker, and transitions Stopped -> Starting
// -> Running (or -> Error on failure), per spec.md §4.4.
func (d *Dispatcher) Start(ctx context.Context, specPath string, env map[string]string) error {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return fmt.Errorf("dataflow: dispatcher already running")
	}
	d.mu.Unlock()

	d.setPhase(hub.PhaseStarting, "")

	if _, err := LoadSpec(specPath); err != nil {
		d.setPhase(hub.PhaseError, err.Error())
		return err
	}

	id, err := d.launcher.Start(ctx, specPath, env)
	if err != nil {
		d.setPhase(hub.PhaseError, err.Error())
		return fmt.Errorf("dataflow: launch: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.dataflowID = id
	d.mu.Unlock()

	for _, b := range d.bridges {
		b := b
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := b.Run(runCtx); err != nil && runCtx.Err() == nil {
				d.logger.Warn("bridge exited with error", "bridge", b.Name(), "error", err.Error())
				if d.metrics != nil {
					d.metrics.IncBridgeRestarts()
				}
			}
		}()
	}

	d.setPhase(hub.PhaseRunning, "")
	d.logger.Info("dataflow dispatcher running", "dataflow_id", id)
	return nil
}

// Stop cancels all bridge workers, invokes the launcher's stop command, and
// joins worker goroutines up to shutdownGrace before detaching stragglers,
// finally transitioning to Stopped (spec.md §4.4).
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel := d.cancel
	id := d.dataflowID
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}

	d.setPhase(hub.PhaseStopping, "")
	cancel()

	if err := d.launcher.Stop(ctx, id); err != nil {
		d.logger.Warn("dataflow stop command failed", "error", err.Error())
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		d.logger.Warn("dataflow bridges did not exit within grace period, detaching", "dataflow_id", id)
	}

	d.setPhase(hub.PhaseStopped, "")
	return nil
}

func (d *Dispatcher) setPhase(phase hub.ConnectionPhase, message string) {
	if d.hub != nil {
		d.hub.Status.SetRunning(phase, message)
	}
}
