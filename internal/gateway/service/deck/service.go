package deck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deckshot/internal/gateway/entity"
	artifactrepo "deckshot/internal/gateway/repository/artifact"
	"deckshot/internal/gateway/repository/record"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Tracker receives progress for each fetch.
type Tracker interface {
	Start(code string) string
	Step(id, step string)
	// Finish receives the failing step, or "" on success.
	Finish(id, step, reference string, err error)
}

type Request struct {
	Code entity.DeckCode
	// RecordID, when set, receives the reference and the normalized code.
	RecordID entity.RecordID
}

type Result struct {
	AcquisitionID string
	Reference     entity.ArtifactReference
	Query         *record.QueryResult
}

type ServiceConfig struct {
	// MaxSessions bounds concurrent browser sessions. Waiting for a slot
	// counts against Timeout.
	MaxSessions int
	Timeout     time.Duration
}

// Service chains acquisition, upload and record update. Nothing is
// reported as done unless every stage succeeds.
type Service struct {
	acquirer  *Acquirer
	artifacts artifactrepo.Store
	records   record.Store
	tracker   Tracker
	sem       *semaphore.Weighted
	timeout   time.Duration
	logger    *zap.Logger
}

func NewService(acquirer *Acquirer, artifacts artifactrepo.Store, records record.Store, tracker Tracker, cfg ServiceConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = nopTracker{}
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Service{
		acquirer:  acquirer,
		artifacts: artifacts,
		records:   records,
		tracker:   tracker,
		sem:       semaphore.NewWeighted(int64(cfg.MaxSessions)),
		timeout:   cfg.Timeout,
		logger:    logger.Named("fetch"),
	}
}

// Fetch validates the request before any browser work, then runs the full
// pipeline under the service deadline.
func (s *Service) Fetch(ctx context.Context, req Request) (Result, error) {
	code := entity.NormalizeDeckCode(string(req.Code))
	if code.IsZero() {
		return Result{}, &StepError{Step: StepValidate, Kind: ErrInputValidation, Err: errors.New("deck code is required")}
	}

	id := s.tracker.Start(code.String())
	log := s.logger.With(zap.String("acquisition_id", id), zap.String("deck_code", code.String()))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	res, err := s.fetch(ctx, id, code, req.RecordID)
	res.AcquisitionID = id
	failed, _ := FailedStep(err)
	s.tracker.Finish(id, string(failed), res.Reference.String(), err)
	if err != nil {
		log.Error("fetch deck failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return res, fmt.Errorf("fetch deck %s: %w", code, err)
	}
	log.Info("fetch deck succeeded", zap.String("reference", res.Reference.String()), zap.Duration("elapsed", time.Since(started)))
	return res, nil
}

func (s *Service) fetch(ctx context.Context, id string, code entity.DeckCode, recordID entity.RecordID) (Result, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Result{}, &StepError{Step: StepQueued, Kind: ErrBusy, Err: err}
	}
	art, err := func() (Artifact, error) {
		defer s.sem.Release(1)
		return s.acquirer.Acquire(ctx, code, func(step Step) {
			s.tracker.Step(id, string(step))
		})
	}()
	if err != nil {
		return Result{}, err
	}

	s.tracker.Step(id, string(StepUpload))
	ref, err := s.artifacts.Put(ctx, artifactrepo.ObjectKey(code), art.PNG, artifactrepo.ContentTypePNG)
	if err != nil {
		return Result{}, &StepError{Step: StepUpload, Kind: ErrUpload, Err: err}
	}
	res := Result{Reference: ref}
	if recordID.IsZero() {
		return res, nil
	}

	s.tracker.Step(id, string(StepUpdateRecord))
	q, err := s.records.UpdateDeckImage(ctx, recordID, ref, code)
	if err != nil {
		return Result{}, &StepError{Step: StepUpdateRecord, Kind: ErrRecordUpdate, Err: err}
	}
	if q.RowsAffected == 0 {
		s.logger.Warn("record update matched no rows", zap.String("acquisition_id", id), zap.String("record_id", recordID.String()))
	}
	res.Query = &q
	return res, nil
}

type nopTracker struct{}

func (nopTracker) Start(string) string                  { return "" }
func (nopTracker) Step(string, string)                  {}
func (nopTracker) Finish(string, string, string, error) {}
