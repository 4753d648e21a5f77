package automation

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"canalpro-publisher/config"
	"canalpro-publisher/models"
	"canalpro-publisher/utils"
)

// Stage is a state of the linear run state machine.
type Stage string

const (
	StageLoggedOut          Stage = "LoggedOut"
	StageLoggingIn          Stage = "LoggingIn"
	StageNavigating         Stage = "Navigating"
	StageFillingFields      Stage = "FillingFields"
	StageUploadingPhotos    Stage = "UploadingPhotos"
	StageVerifyingReadiness Stage = "VerifyingReadiness"
	StageObservationPause   Stage = "ObservationPause"
	StageDone               Stage = "Done"
	StageFailed             Stage = "Failed"
)

// Log phrases the runner looks for in a child's output.
const (
	LogLoginConfirmed = "login confirmed"
	LogFieldsDone     = "fields done"
	LogReadiness      = "readiness check:"
	LogPhotoStatus    = "upload status:"
	LogFatal          = "FATAL"
	LogCompleted      = "run completed"
)

// Result is the outcome of one run.
type Result struct {
	Stages        []Stage
	Err           error
	FieldsOK      int
	FieldsSkipped int
	FieldsFailed  []string
	Photos        UploadReport
	Ready         bool
	Screenshot    string
}

// ReachedStage reports whether the run entered s.
func (r *Result) ReachedStage(s Stage) bool {
	for _, st := range r.Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Warnings reports whether a successful run left something for the operator
// to check.
func (r *Result) Warnings() bool {
	return len(r.FieldsFailed) > 0 || !r.Ready || r.Photos.Status != PhotosOK
}

// Orchestrator drives one browser session from login to the filled form. It
// never submits the form: after navigation every click goes through a
// SubmitGuard.
type Orchestrator struct {
	page     *SubmitGuard
	cfg      *config.Config
	plan     *config.SelectorPlan
	logger   *utils.Logger
	resolver *Resolver
	filler   *Filler
	switches *SwitchVerifier
	photos   *PhotoUploader
	footer   *FooterVerifier
	now      func() time.Time
}

// NewOrchestrator wires the form components around page.
func NewOrchestrator(page Page, cfg *config.Config, plan *config.SelectorPlan, logger *utils.Logger) *Orchestrator {
	guard := NewSubmitGuard(page, plan.ForbiddenClicks, logger)
	resolver := NewResolver(guard)

	retry := utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger}
	photoSel := PhotoSelectors{
		Section:  ParseLocators(plan.Photos.Section, ""),
		Buttons:  ParseLocators(plan.Photos.Buttons, ""),
		Inputs:   ParseLocators(plan.Photos.Inputs, ""),
		Previews: ParseLocators(plan.Photos.Previews, ""),
	}
	photoOpts := PhotoOptions{
		BatchSize:   cfg.PhotoBatchSize,
		MaxPhotos:   cfg.PhotoMax,
		MinBytes:    cfg.PhotoMinBytes,
		MaxBytes:    int64(cfg.PhotoMaxBytes),
		TempRoot:    cfg.TempDir,
		BatchWait:   cfg.PhotoBatchWait,
		BetweenWait: cfg.PhotoBetweenWait,
		LocateWait:  cfg.FieldTimeout,
	}

	return &Orchestrator{
		page:     guard,
		cfg:      cfg,
		plan:     plan,
		logger:   logger,
		resolver: resolver,
		filler:   NewFiller(guard, resolver, cfg.FieldTimeout, logger),
		switches: NewSwitchVerifier(guard, resolver, cfg.SwitchTimeout, cfg.Settle, logger),
		photos: NewPhotoUploader(guard, resolver, &http.Client{Timeout: cfg.PhotoTimeout},
			retry, photoSel, photoOpts, logger),
		footer: NewFooterVerifier(guard, resolver,
			ParseLocators(plan.Footer.Containers, ""), ParseLocators(plan.Footer.Buttons, ""),
			cfg.FieldTimeout, logger),
		now: time.Now,
	}
}

// Preflight runs the checks that need no browser: credentials first, then
// job completeness.
func Preflight(cfg *config.Config, job *models.Job) error {
	if !cfg.HasCredentials() {
		return ErrMissingCredentials
	}
	if missing := job.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrJobIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// Run executes the whole flow for job. Only a missing credential, an
// incomplete job, a failed login or a missing creation entry point end the
// run early; everything else is logged and the run goes on.
func (o *Orchestrator) Run(ctx context.Context, job *models.Job) *Result {
	res := &Result{}
	o.enter(res, StageLoggedOut)

	if err := Preflight(o.cfg, job); err != nil {
		return o.fail(ctx, res, StageLoggedOut, err, false)
	}

	o.enter(res, StageLoggingIn)
	if err := o.login(ctx); err != nil {
		return o.fail(ctx, res, StageLoggingIn, err, true)
	}

	o.enter(res, StageNavigating)
	if err := o.openForm(ctx); err != nil {
		return o.fail(ctx, res, StageNavigating, err, true)
	}

	o.enter(res, StageFillingFields)
	o.fillFields(ctx, job, res)
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, res, StageFillingFields, err, true)
	}

	o.enter(res, StageUploadingPhotos)
	res.Photos = o.photos.Upload(ctx, job.Fotos)

	o.enter(res, StageVerifyingReadiness)
	res.Ready = o.footer.CheckReady(ctx)
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, res, StageVerifyingReadiness, err, false)
	}

	res.Screenshot = o.screenshot(ctx, "teste_completo")

	o.enter(res, StageObservationPause)
	if o.cfg.ObservationPause > 0 {
		o.logger.Info("[orchestrator] keeping the browser open for %v for manual review", o.cfg.ObservationPause)
		if utils.Sleep(ctx, o.cfg.ObservationPause) != nil {
			o.logger.Info("[orchestrator] observation pause interrupted")
		}
	}

	o.enter(res, StageDone)
	if res.Warnings() {
		o.logger.Warn("[orchestrator] %s with warnings (fields failed: %d, photos: %s, ready: %t)",
			LogCompleted, len(res.FieldsFailed), res.Photos.Status, res.Ready)
	} else {
		o.logger.Info("[orchestrator] %s", LogCompleted)
	}
	return res
}

func (o *Orchestrator) enter(res *Result, s Stage) {
	res.Stages = append(res.Stages, s)
	o.logger.Info("[orchestrator] stage -> %s", s)
}

func (o *Orchestrator) fail(ctx context.Context, res *Result, stage Stage, err error, shot bool) *Result {
	res.Err = &StageError{Stage: stage, Err: err}
	o.logger.Error("[orchestrator] %s at %s: %v", LogFatal, stage, err)
	if shot {
		res.Screenshot = o.screenshot(ctx, "erro_teste")
	}
	o.enter(res, StageFailed)
	return res
}

func (o *Orchestrator) login(ctx context.Context) error {
	if err := o.page.Navigate(ctx, o.cfg.HomeURL); err != nil {
		return fmt.Errorf("open %s: %w", o.cfg.HomeURL, err)
	}
	o.dismissCookies(ctx)

	o.filler.Fill(ctx, "E-mail", ParseLocators(o.plan.Login.Email, ""), o.cfg.Email, ModeText)
	o.filler.FillSecret(ctx, "Senha", ParseLocators(o.plan.Login.Password, ""), o.cfg.Password)
	o.filler.Fill(ctx, "Entrar", ParseLocators(o.plan.Login.Submit, ""), "", ModeClick)

	deadline := time.Now().Add(o.cfg.LoginTimeout)
	for {
		loc, err := o.page.Location(ctx)
		if err == nil && strings.Contains(loc, o.cfg.PostLoginPattern) {
			o.logger.Info("[orchestrator] %s (%s)", LogLoginConfirmed, loc)
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: last location %q", ErrLoginTimeout, loc)
		}
		if err := utils.Sleep(ctx, 500*time.Millisecond); err != nil {
			return fmt.Errorf("%w: %v", ErrLoginTimeout, err)
		}
	}
}

func (o *Orchestrator) dismissCookies(ctx context.Context) {
	loc, ok := o.resolver.Visible(ctx, ParseLocators(o.plan.Cookies, ""), o.cfg.SwitchTimeout)
	if !ok {
		o.logger.Debug("[orchestrator] no cookie banner")
		return
	}
	if err := o.page.Click(ctx, loc); err != nil {
		o.logger.Warn("[orchestrator] cookie banner click failed: %v", err)
		return
	}
	o.logger.Info("[orchestrator] cookie banner dismissed (%s)", loc)
}

func (o *Orchestrator) openForm(ctx context.Context) error {
	if err := o.page.Navigate(ctx, o.cfg.ListingsURL); err != nil {
		return fmt.Errorf("open listings: %w", err)
	}
	loc, ok := o.resolver.Visible(ctx, ParseLocators(o.plan.CreateListing, ""), o.cfg.NavigationTimeout)
	if !ok {
		return ErrCreateEntryNotFound
	}
	if err := o.page.Click(ctx, loc); err != nil {
		return fmt.Errorf("%w: %v", ErrCreateEntryNotFound, err)
	}
	_ = utils.Sleep(ctx, o.cfg.Settle)
	o.page.Arm()
	o.logger.Info("[orchestrator] listing form opened, submit guard armed")
	return nil
}

func (o *Orchestrator) fillFields(ctx context.Context, job *models.Job, res *Result) {
	_ = o.page.Eval(ctx, ScriptScrollTop, nil)
	for _, step := range o.plan.Steps {
		value, skip := StepValue(step, job)
		if skip {
			res.FieldsSkipped++
			o.logger.Debug("[orchestrator] %s: skipped", step.Name)
			continue
		}
		candidates := ParseLocators(step.Selectors, value)

		var ok bool
		if step.Mode == config.ModeSwitch {
			ok = o.switches.EnsureActive(ctx, candidates, step.Name)
		} else {
			ok = o.filler.Fill(ctx, step.Name, candidates, value, Mode(step.Mode))
		}
		if ok {
			res.FieldsOK++
		} else {
			res.FieldsFailed = append(res.FieldsFailed, step.Name)
		}
		_ = utils.Sleep(ctx, step.Settle)
	}
	o.logger.Info("[orchestrator] %s: %d ok, %d failed, %d skipped",
		LogFieldsDone, res.FieldsOK, len(res.FieldsFailed), res.FieldsSkipped)
	if len(res.FieldsFailed) > 0 {
		o.logger.Warn("[orchestrator] failed fields: %s", strings.Join(res.FieldsFailed, ", "))
	}
}

func (o *Orchestrator) screenshot(ctx context.Context, prefix string) string {
	if o.cfg.ScreenshotDir == "" {
		return ""
	}
	if err := os.MkdirAll(o.cfg.ScreenshotDir, 0o755); err != nil {
		o.logger.Warn("[orchestrator] screenshot dir: %v", err)
		return ""
	}
	path := filepath.Join(o.cfg.ScreenshotDir, fmt.Sprintf("%s_%s.png", prefix, o.now().Format("20060102_150405")))
	// The run context may already be done after a fatal error.
	shotCtx := ctx
	if ctx.Err() != nil {
		shotCtx = context.WithoutCancel(ctx)
	}
	if err := o.page.Screenshot(shotCtx, path); err != nil {
		o.logger.Warn("[orchestrator] screenshot failed: %v", err)
		return ""
	}
	o.logger.Info("[orchestrator] screenshot saved: %s", path)
	return path
}
