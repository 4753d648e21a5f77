package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"canalpro-publisher/models"
	"canalpro-publisher/runner"
	"canalpro-publisher/utils"
)

var (
	// ErrAlreadyRunning is returned when a run for the same listing is in flight.
	ErrAlreadyRunning = errors.New("an automation run for this listing is already in progress")
	// ErrNotReady is returned when the merged job fails the completeness rule.
	ErrNotReady = errors.New("listing is not ready for publication")
)

// PublishStore is the storage surface the publisher reads from.
type PublishStore interface {
	GetProperty(ctx context.Context, codigo string) (*models.PropertyRecord, error)
	EnsureDraft(ctx context.Context, codigo string) (*models.ListingDraft, error)
}

// JobRunner executes one automation job out of process.
type JobRunner interface {
	Run(ctx context.Context, job *models.Job) *runner.Result
}

// Publisher assembles jobs from stored data and hands them to the runner,
// keeping at most one run in flight per listing.
type Publisher struct {
	store    PublishStore
	runner   JobRunner
	inFlight *utils.KeySet
	logger   *utils.Logger
}

// NewPublisher creates a Publisher reading from store and running jobs on r.
func NewPublisher(store PublishStore, r JobRunner, logger *utils.Logger) *Publisher {
	return &Publisher{
		store:    store,
		runner:   r,
		inFlight: utils.NewKeySet(),
		logger:   logger,
	}
}

// Prepare builds the job snapshot for codigo and lists what it is missing.
func (p *Publisher) Prepare(ctx context.Context, codigo string) (*models.Job, []string, error) {
	prop, err := p.store.GetProperty(ctx, codigo)
	if err != nil {
		return nil, nil, err
	}
	draft, err := p.store.EnsureDraft(ctx, codigo)
	if err != nil {
		return nil, nil, err
	}
	job := models.BuildJob(prop, draft)
	return job, job.Missing(), nil
}

// Publish runs the form automation for codigo. It refuses incomplete jobs
// and concurrent runs for the same listing without starting a process.
func (p *Publisher) Publish(ctx context.Context, codigo string) (*runner.Result, error) {
	if !p.inFlight.Add(codigo) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, codigo)
	}
	defer p.inFlight.Remove(codigo)

	job, missing, err := p.Prepare(ctx, codigo)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrNotReady, strings.Join(missing, ", "))
	}

	p.logger.Info("[publisher] %s: starting automation (%d photos)", codigo, len(job.Fotos))
	res := p.runner.Run(ctx, job)
	if res.Success() {
		p.logger.Info("[publisher] %s: %s", codigo, res.Message())
	} else {
		p.logger.Error("[publisher] %s: %s", codigo, res.Message())
	}
	return res, nil
}

// Running reports whether a run for codigo is in flight.
func (p *Publisher) Running(codigo string) bool {
	return p.inFlight.Contains(codigo)
}
