package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canalpro-publisher/config"
	"canalpro-publisher/models"
	"canalpro-publisher/utils"
)

// TestHelperProcess is not a real test: it is the child process the runner
// launches in the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	path := args[len(args)-1]

	switch os.Getenv("HELPER_MODE") {
	case "success":
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Println("cannot read job:", err)
			os.Exit(3)
		}
		job, err := models.DecodeJob(data)
		if err != nil {
			fmt.Println("bad job:", err)
			os.Exit(3)
		}
		fmt.Printf("job tipo=%s fotos=%d\n", job.Tipo, len(job.Fotos))
		fmt.Println("[orchestrator] login confirmed (https://canalpro.test/ZAP_OLX/0)")
		fmt.Println("[orchestrator] fields done: 20 ok, 0 failed, 4 skipped")
		fmt.Println("[photos] upload status: ok (1/1 batches, 5/5 downloaded)")
		fmt.Println("[footer] readiness check: true")
		fmt.Println("[orchestrator] run completed")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "[orchestrator] FATAL at LoggingIn: login did not reach the expected page in time")
		os.Exit(1)
	case "cleanup":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		photo := filepath.Join(os.Getenv("HELPER_DIR"), "foto_001.jpg")
		if err := os.WriteFile(photo, []byte("jpeg"), 0o600); err != nil {
			os.Exit(3)
		}
		fmt.Println("[photos] batch 1/1: 1 files")
		select {
		case <-ctx.Done():
		case <-time.After(time.Minute):
		}
		os.Remove(photo)
		fmt.Println("[orchestrator] FATAL at UploadingPhotos: context canceled")
		os.Exit(1)
	case "observe":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		fmt.Println("[orchestrator] login confirmed (https://canalpro.test/ZAP_OLX/0)")
		fmt.Println("[orchestrator] fields done: 20 ok, 0 failed, 4 skipped")
		fmt.Println("[orchestrator] stage -> ObservationPause")
		select {
		case <-ctx.Done():
		case <-time.After(time.Minute):
		}
		fmt.Println("[orchestrator] run completed")
		os.Exit(0)
	case "hang":
		fmt.Println("[orchestrator] stage -> LoggingIn")
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func helperRunner(t *testing.T, mode string, timeout time.Duration, log *bytes.Buffer) *Runner {
	t.Helper()
	r := NewWithCommand(os.Args[0], []string{"-test.run=TestHelperProcess", "--"}, timeout, utils.NewLoggerTo(log))
	r.Env = []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode}
	r.TempDir = t.TempDir()
	return r
}

func sampleJob() *models.Job {
	return &models.Job{
		Tipo: "Apartamento", CEP: "01234-567", Endereco: "Rua A", Numero: "1", Bairro: "Centro",
		Preco: 300000, Fotos: []string{"a", "b", "c", "d", "e"},
	}
}

func assertNoJobFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "job file left behind")
}

func TestRunSuccess(t *testing.T) {
	var log bytes.Buffer
	r := helperRunner(t, "success", 30*time.Second, &log)

	res := r.Run(context.Background(), sampleJob())

	require.NoError(t, res.Err)
	assert.True(t, res.Success())
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Log, "job tipo=Apartamento fotos=5")
	assert.Equal(t, "login ok; fields 20 ok, 0 failed, 4 skipped; photos ok; footer ready; completed", res.Diagnostics)
	assert.True(t, strings.HasPrefix(res.Message(), "Form filled."))
	assert.NotEmpty(t, res.RunID)
	assertNoJobFiles(t, r.TempDir)
}

func TestRunGracefulFailure(t *testing.T) {
	var log bytes.Buffer
	r := helperRunner(t, "fail", 30*time.Second, &log)

	res := r.Run(context.Background(), sampleJob())

	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Log, "FATAL at LoggingIn")
	assert.Equal(t, "fatal at LoggingIn: login did not reach the expected page in time", res.Diagnostics)
	assert.Contains(t, res.Message(), "exit code 1")
	assertNoJobFiles(t, r.TempDir)
}

func TestRunTimeoutKillsChild(t *testing.T) {
	var log bytes.Buffer
	r := helperRunner(t, "hang", 500*time.Millisecond, &log)

	start := time.Now()
	res := r.Run(context.Background(), sampleJob())

	assert.Less(t, time.Since(start), 30*time.Second)
	assert.Equal(t, OutcomeInfrastructure, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Contains(t, res.Message(), "timed out")
	assertNoJobFiles(t, r.TempDir)
}

func TestRunTimeoutInterruptsChildSoItCleansUp(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("interrupt cannot be delivered to a child on windows")
	}
	var log bytes.Buffer
	r := helperRunner(t, "cleanup", 2*time.Second, &log)
	dir := t.TempDir()
	r.Env = append(r.Env, "HELPER_DIR="+dir)

	res := r.Run(context.Background(), sampleJob())

	assert.Equal(t, OutcomeInfrastructure, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Contains(t, res.Log, "FATAL at UploadingPhotos")
	assertNoJobFiles(t, dir)
	assertNoJobFiles(t, r.TempDir)
}

func TestRunTimeoutDuringObservationIsSuccess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("interrupt cannot be delivered to a child on windows")
	}
	var log bytes.Buffer
	r := helperRunner(t, "observe", 2*time.Second, &log)

	res := r.Run(context.Background(), sampleJob())

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "login ok; fields 20 ok, 0 failed, 4 skipped; completed", res.Diagnostics)
	assert.True(t, strings.HasPrefix(res.Message(), "Form filled."))
}

func TestNewRejectsShortRunTimeout(t *testing.T) {
	var log bytes.Buffer
	cfg := &config.Config{
		LoginTimeout:      15 * time.Second,
		NavigationTimeout: 10 * time.Second,
		FieldTimeout:      5 * time.Second,
		ObservationPause:  4 * time.Minute,
		RunTimeout:        300 * time.Second,
	}

	_, err := New(cfg, utils.NewLoggerTo(&log))
	assert.ErrorIs(t, err, ErrBudget)

	cfg.ObservationPause = 2 * time.Minute
	cfg.RunTimeout = 360 * time.Second
	r, err := New(cfg, utils.NewLoggerTo(&log))
	require.NoError(t, err)
	assert.Equal(t, 360*time.Second, r.Timeout)
}

func TestRunStartFailure(t *testing.T) {
	var log bytes.Buffer
	r := NewWithCommand("/nonexistent/canalpro-publisher", nil, time.Second, utils.NewLoggerTo(&log))
	r.TempDir = t.TempDir()

	res := r.Run(context.Background(), sampleJob())

	assert.Equal(t, OutcomeInfrastructure, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrStart)
	assert.Contains(t, res.Message(), "could not be started")
	assertNoJobFiles(t, r.TempDir)
}

func TestDiagnose(t *testing.T) {
	cases := []struct {
		name string
		log  string
		want string
	}{
		{"empty", "", "no progress recognized in log"},
		{
			"warnings",
			"[2024-01-01 10:00:00] INFO  [orchestrator] login confirmed (x)\n" +
				"[2024-01-01 10:00:05] INFO  [orchestrator] fields done: 18 ok, 2 failed, 4 skipped\n" +
				"[2024-01-01 10:00:30] INFO  [photos] upload status: partial (1/2 batches, 12/12 downloaded)\n" +
				"[2024-01-01 10:00:31] WARN  [footer] readiness check: false\n" +
				"[2024-01-01 10:04:31] WARN  [orchestrator] run completed with warnings (fields failed: 2, photos: partial, ready: false)\n",
			"login ok; fields 18 ok, 2 failed, 4 skipped; photos partial; footer not found; completed with warnings",
		},
		{
			"credentials",
			"[2024-01-01 10:00:00] ERROR [orchestrator] FATAL at LoggedOut: missing ZAP_EMAIL/ZAP_PASSWORD credentials\n",
			"fatal at LoggedOut: missing ZAP_EMAIL/ZAP_PASSWORD credentials",
		},
	}
	for _, c := range cases {
		if got := Diagnose(c.log); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}
