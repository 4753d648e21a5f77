package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"canalpro-publisher/automation"
	"canalpro-publisher/config"
	"canalpro-publisher/models"
	"canalpro-publisher/utils"
)

var (
	// ErrStart means the child process could not be launched.
	ErrStart = errors.New("automation process could not be started")
	// ErrTimeout means the child exceeded the run timeout and was killed.
	ErrTimeout = errors.New("automation process timed out")
	// ErrBudget means the run timeout cannot cover a full run.
	ErrBudget = errors.New("run timeout too short")
)

// Outcome classifies a finished run for the operator.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeFailure        Outcome = "failure"
	OutcomeInfrastructure Outcome = "infrastructure"
)

// Result is what the caller gets back from one run.
type Result struct {
	RunID       string        `json:"run_id"`
	Outcome     Outcome       `json:"outcome"`
	ExitCode    int           `json:"exit_code"`
	Log         string        `json:"log"`
	Diagnostics string        `json:"diagnostics"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"`
}

// Success reports a clean exit of the child.
func (r *Result) Success() bool { return r.Outcome == OutcomeSuccess }

// Message is the one-line banner shown to the operator.
func (r *Result) Message() string {
	switch {
	case r.Outcome == OutcomeSuccess:
		return "Form filled. Review it in the browser before publishing. (" + r.Diagnostics + ")"
	case errors.Is(r.Err, ErrTimeout):
		return fmt.Sprintf("Automation timed out after %s and was stopped. (%s)", r.Duration.Round(time.Second), r.Diagnostics)
	case errors.Is(r.Err, ErrStart):
		return fmt.Sprintf("Automation could not be started: %v", r.Err)
	default:
		return fmt.Sprintf("Automation failed (exit code %d): %s", r.ExitCode, r.Diagnostics)
	}
}

// Runner executes each job in a fresh OS process so a hung or crashed
// browser never takes the caller down with it.
type Runner struct {
	Command string
	// Args precede the job file path on the child's command line.
	Args    []string
	Env     []string
	Timeout time.Duration
	TempDir string
	logger  *utils.Logger
}

// New returns a Runner that re-executes the current binary with "fill".
func New(cfg *config.Config, logger *utils.Logger) (*Runner, error) {
	if err := cfg.CheckRunBudget(); err != nil {
		return nil, fmt.Errorf("runner: %w: %v", ErrBudget, err)
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("runner: locate executable: %w", err)
	}
	return &Runner{
		Command: exe,
		Args:    []string{"fill"},
		Timeout: cfg.RunTimeout,
		TempDir: cfg.TempDir,
		logger:  logger,
	}, nil
}

// NewWithCommand returns a Runner launching command with args.
func NewWithCommand(command string, args []string, timeout time.Duration, logger *utils.Logger) *Runner {
	return &Runner{Command: command, Args: args, Timeout: timeout, logger: logger}
}

// Run serializes job to a temporary file, runs the child with the file path
// as its last argument and waits at most Timeout. On timeout the child is
// interrupted so it can close the browser and remove its temp files, and is
// killed if it has not exited WaitDelay later. The job file is removed on
// every path.
func (r *Runner) Run(ctx context.Context, job *models.Job) *Result {
	start := time.Now()
	res := &Result{RunID: uuid.NewString(), ExitCode: -1}
	defer func() {
		res.Duration = time.Since(start)
		res.Diagnostics = Diagnose(res.Log)
		if res.Err != nil {
			r.logger.Warn("[runner] run %s: %s: %v", res.RunID, res.Outcome, res.Err)
		} else {
			r.logger.Info("[runner] run %s: %s in %s", res.RunID, res.Outcome, res.Duration.Round(time.Millisecond))
		}
	}()

	path, err := r.writeJob(res.RunID, job)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				r.logger.Warn("[runner] remove job file %s: %v", path, rmErr)
			}
		}()
	}
	if err != nil {
		res.Outcome = OutcomeInfrastructure
		res.Err = fmt.Errorf("%w: %v", ErrStart, err)
		return res
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var out bytes.Buffer
	args := append(append([]string{}, r.Args...), path)
	cmd := exec.CommandContext(runCtx, r.Command, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 10 * time.Second

	r.logger.Info("[runner] run %s: starting %s", res.RunID, r.Command)
	if err := cmd.Start(); err != nil {
		res.Outcome = OutcomeInfrastructure
		res.Err = fmt.Errorf("%w: %v", ErrStart, err)
		return res
	}

	waitErr := cmd.Wait()
	res.Log = out.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	switch {
	case timedOut && res.ExitCode == 0 && strings.Contains(res.Log, automation.LogCompleted):
		// Only the observation pause was cut short.
		r.logger.Info("[runner] run %s: observation pause ended by the run timeout", res.RunID)
		res.Outcome = OutcomeSuccess
	case timedOut:
		res.Outcome = OutcomeInfrastructure
		res.Err = fmt.Errorf("%w after %s", ErrTimeout, r.Timeout)
	case waitErr == nil:
		res.Outcome = OutcomeSuccess
	default:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			res.Outcome = OutcomeInfrastructure
			res.Err = fmt.Errorf("%w: %v", ErrStart, waitErr)
			return res
		}
		res.Outcome = OutcomeFailure
		res.Err = fmt.Errorf("automation exited with code %d", res.ExitCode)
	}
	return res
}

func (r *Runner) writeJob(runID string, job *models.Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	f, err := os.CreateTemp(r.TempDir, "canalpro-job-"+runID[:8]+"-*.json")
	if err != nil {
		return "", fmt.Errorf("create job file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		return path, fmt.Errorf("write job file: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("close job file: %w", err)
	}
	return path, nil
}
