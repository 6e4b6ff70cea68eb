// Package sweep periodically re-renders report artifacts that are
// missing on disk, so a crash between finalization and rendering heals
// itself on the next pass.
package sweep

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/helpline1930/helpline/internal/models"
)

// Records lists the submitted records eligible for rendering.
type Records interface {
	ListSubmitted() ([]models.Complaint, error)
}

// Renderer writes the artifact for a record and knows which exist.
type Renderer interface {
	Render(rec *models.Complaint) (string, error)
	Exists(id uint) bool
}

// Notifier reports render failures to ops. Optional.
type Notifier interface {
	SweepFailure(recordID uint, cause error) error
}

// Sweeper scans submitted records and renders any missing artifacts.
type Sweeper struct {
	records  Records
	renderer Renderer
	notifier Notifier
	spec     string
	cron     *cron.Cron
}

// Opts holds parameters for creating a Sweeper.
type Opts struct {
	Records  Records
	Renderer Renderer
	Notifier Notifier
	Spec     string // 5-field cron expression
}

// New creates a Sweeper.
func New(opts Opts) (*Sweeper, error) {
	if opts.Records == nil {
		return nil, fmt.Errorf("sweep: records is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("sweep: renderer is required")
	}
	if opts.Spec == "" {
		return nil, fmt.Errorf("sweep: cron spec is required")
	}
	return &Sweeper{
		records:  opts.Records,
		renderer: opts.Renderer,
		notifier: opts.Notifier,
		spec:     opts.Spec,
	}, nil
}

// Run performs one sweep pass and returns how many artifacts were
// rendered. Individual failures are reported and skipped; one bad
// record never stops the pass.
func (s *Sweeper) Run() (int, error) {
	recs, err := s.records.ListSubmitted()
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	rendered := 0
	for i := range recs {
		rec := &recs[i]
		if s.renderer.Exists(rec.ID) {
			continue
		}
		if _, err := s.renderer.Render(rec); err != nil {
			log.Printf("sweep: render %d: %v", rec.ID, err)
			if s.notifier != nil {
				if nerr := s.notifier.SweepFailure(rec.ID, err); nerr != nil {
					log.Printf("sweep: notify: %v", nerr)
				}
			}
			continue
		}
		rendered++
	}
	if rendered > 0 {
		log.Printf("sweep: rendered %d missing artifacts", rendered)
	}
	return rendered, nil
}

// Start schedules periodic sweeps. The first pass runs on the schedule,
// not immediately; call Run first when catching up at startup.
func (s *Sweeper) Start() error {
	if s.cron != nil {
		return fmt.Errorf("sweep: already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.Run(); err != nil {
			log.Printf("sweep: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("sweep: schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the schedule, waiting for a running pass to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
}
