package scraper

import (
	"context"
	"errors"
)

// Job adapts the scraper to the cron registry.
type Job struct {
	svc *Service
}

func NewJob(svc *Service) *Job {
	return &Job{svc: svc}
}

func (j *Job) Name() string { return "scrape" }

func (j *Job) Run(ctx context.Context) error {
	res, err := j.svc.Run(ctx)
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}
