// services/followup_scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// FollowUpScheduler runs the processor on a cron schedule inside the server
// process. Overlapping ticks are skipped while a pass is still running.
type FollowUpScheduler struct {
	processor *Processor
	spec      string
	loc       *time.Location
	log       zerolog.Logger

	mu      sync.Mutex
	c       *cron.Cron
	entryID cron.EntryID
}

func NewFollowUpScheduler(processor *Processor, spec string, loc *time.Location, log zerolog.Logger) *FollowUpScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &FollowUpScheduler{
		processor: processor,
		spec:      spec,
		loc:       loc,
		log:       log,
	}
}

// Start registers the job and starts the cron loop. Passes run with ctx, so
// cancelling it stops new dispatch waits but not in-flight batches.
func (s *FollowUpScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return errors.New("scheduler already started")
	}

	logger := cronLogger{log: s.log}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	id, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid follow-up schedule %q: %w", s.spec, err)
	}
	c.Start()

	s.c = c
	s.entryID = id
	s.log.Info().Str("schedule", s.spec).Str("timezone", s.loc.String()).Msg("follow-up scheduler started")
	return nil
}

// RunOnce executes a single processing pass and logs the result.
func (s *FollowUpScheduler) RunOnce(ctx context.Context) {
	processed, err := s.processor.Process(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled follow-up pass failed")
		return
	}
	if processed > 0 {
		s.log.Info().Int("processed", processed).Msg("scheduled follow-up pass done")
	}
}

// Next returns the next planned run, or the zero time if not started.
func (s *FollowUpScheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entryID).Next
}

// Stop halts the cron loop and waits for a running pass until ctx ends.
func (s *FollowUpScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
		s.log.Info().Msg("follow-up scheduler stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("follow-up scheduler stop timed out with a pass still running")
	}
}

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
