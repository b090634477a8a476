// Package sweep runs the periodic maintenance pass: it frees beds
// whose cleaning duration has elapsed, resolves expired oxygen pauses,
// and triggers automatic assignment for every hospital.
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/camanet/camanet/internal/config"
	"github.com/camanet/camanet/internal/domain/assign"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/domain/transition"
)

type Runner struct {
	beds        registry.BedRepository
	hospitals   registry.HospitalRepository
	transitions *transition.Service
	assigner    *assign.Service
	timers      config.TimerTuning
	interval    time.Duration
	// manual disables the automatic assignment pass; timer expiry
	// still runs so beds and pauses do not stall.
	manual bool
	logger zerolog.Logger
	stop   chan struct{}
}

func NewRunner(
	beds registry.BedRepository,
	hospitals registry.HospitalRepository,
	transitions *transition.Service,
	assigner *assign.Service,
	tuning *config.Tuning,
	interval time.Duration,
	manual bool,
	logger zerolog.Logger,
) *Runner {
	return &Runner{
		beds:        beds,
		hospitals:   hospitals,
		transitions: transitions,
		assigner:    assigner,
		timers:      tuning.Timers,
		interval:    interval,
		manual:      manual,
		logger:      logger,
		stop:        make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (r *Runner) Start() {
	go r.loop()
}

func (r *Runner) Stop() {
	close(r.stop)
}

func (r *Runner) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.RunOnce(context.Background())
		case <-r.stop:
			return
		}
	}
}

// RunOnce executes a single sweep pass. Each stage logs and continues
// on failure so one stuck hospital cannot stall the rest.
func (r *Runner) RunOnce(ctx context.Context) {
	r.finishElapsedCleaning(ctx)

	if err := r.transitions.ResolveElapsedPauses(ctx); err != nil {
		r.logger.Error().Err(err).Msg("oxygen pause sweep failed")
	}

	if r.manual {
		return
	}
	hospitals, err := r.hospitals.List(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list hospitals for assignment sweep")
		return
	}
	for _, h := range hospitals {
		results, err := r.assigner.RunAutomaticAssignment(ctx, h.ID)
		if err != nil {
			r.logger.Error().Err(err).Str("hospital_id", h.ID.String()).Msg("automatic assignment sweep failed")
			continue
		}
		assigned := 0
		for _, res := range results {
			if res.Assigned {
				assigned++
			}
		}
		if assigned > 0 {
			r.logger.Info().
				Str("hospital_id", h.ID.String()).
				Int("assigned", assigned).
				Int("waiting", len(results)-assigned).
				Msg("automatic assignment pass")
		}
	}
}

func (r *Runner) finishElapsedCleaning(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.timers.CleaningDuration())
	due, err := r.beds.CleaningSince(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("cleaning sweep query failed")
		return
	}
	for _, bed := range due {
		if err := r.transitions.FinishCleaning(ctx, bed.ID); err != nil {
			r.logger.Warn().Err(err).Str("bed_id", bed.ID.String()).Msg("failed to finish cleaning")
		}
	}
}
