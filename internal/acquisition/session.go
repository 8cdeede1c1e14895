package acquisition

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/model"
	"github.com/sells-group/audit-flash/internal/store"
)

// Init normalizes address, queries every registry concurrently and opens a
// session over the reconciled record. The session is READY when every
// required field is present and DRAFT otherwise.
func (o *Orchestrator) Init(ctx context.Context, address string) (model.AuditResult, error) {
	start := o.now()
	log := zap.L().With(zap.String("query", address))
	log.Info("acquisition: starting")

	data, reports, err := o.collect(ctx, address, start)
	if err != nil {
		return model.AuditResult{}, err
	}
	data = o.estimate(data, start)

	s := &model.AuditSession{
		ID:        o.newID(),
		State:     model.StateDraft,
		Query:     address,
		Data:      data,
		Sources:   reports,
		Version:   1,
		CreatedAt: start,
		UpdatedAt: start,
		ExpiresAt: start.Add(o.cfg.SessionTTL),
	}
	if err := s.Transition(s.Classify()); err != nil {
		return model.AuditResult{}, eris.Wrap(err, "acquisition: classify")
	}
	if err := o.store.CreateSession(ctx, s); err != nil {
		return model.AuditResult{}, eris.Wrap(err, "acquisition: create session")
	}

	elapsed := o.now().Sub(start)
	o.metrics.ObserveAcquire(elapsed)
	o.metrics.IncSessionState(string(s.State))
	log.Info("acquisition: session opened",
		zap.String("session_id", s.ID),
		zap.String("state", string(s.State)),
		zap.Int("missing", len(s.MissingFields)),
		zap.Duration("duration", elapsed),
	)
	return model.ResultOf(s), nil
}

// Complete overlays manual values on a DRAFT session and re-evaluates it.
// Invalid values return a *model.ValidationError and leave the session
// unchanged. Repeated rounds are allowed while fields remain missing.
func (o *Orchestrator) Complete(ctx context.Context, tempID string, values map[string]any) (model.AuditResult, error) {
	unlock := o.locks.Lock(tempID)
	defer unlock()

	s, err := o.load(ctx, tempID)
	if err != nil {
		return model.AuditResult{}, err
	}
	if s.State != model.StateDraft {
		return model.AuditResult{}, eris.Wrapf(ErrSessionExpired, "acquisition: session %s is %s", tempID, s.State)
	}

	at := o.now()
	data, err := model.ApplyManual(s.Data, values, at)
	if err != nil {
		return model.AuditResult{}, err
	}
	s.Data = o.estimate(data, at)

	if err := o.commit(ctx, s); err != nil {
		return model.AuditResult{}, err
	}
	return model.ResultOf(s), nil
}

// Refresh re-queries every registry for an open session and merges the new
// answers. Manual values are kept; newer registry values replace older ones.
func (o *Orchestrator) Refresh(ctx context.Context, sessionID string) (model.AuditResult, error) {
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	s, err := o.load(ctx, sessionID)
	if err != nil {
		return model.AuditResult{}, err
	}
	if s.State == model.StateCompleted {
		return model.AuditResult{}, eris.Wrapf(ErrSessionExpired, "acquisition: session %s is %s", sessionID, s.State)
	}

	at := o.now()
	fresh, reports, err := o.collect(ctx, s.Query, at)
	if err != nil {
		return model.AuditResult{}, err
	}
	s.Data = o.estimate(s.Data.Overlay(fresh), at)
	s.Sources = reports

	if err := o.commit(ctx, s); err != nil {
		return model.AuditResult{}, err
	}
	return model.ResultOf(s), nil
}

// Session returns an unexpired session in any state.
func (o *Orchestrator) Session(ctx context.Context, id string) (*model.AuditSession, error) {
	return o.load(ctx, id)
}

// load fetches an unexpired session. Unknown and expired ids both yield
// ErrSessionExpired.
func (o *Orchestrator) load(ctx context.Context, id string) (*model.AuditSession, error) {
	s, err := o.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrSessionExpired, "acquisition: session %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "acquisition: get session")
	}
	if s.Expired(o.now()) {
		return nil, eris.Wrapf(ErrSessionExpired, "acquisition: session %s expired at %s", id, s.ExpiresAt)
	}
	return s, nil
}

// commit re-classifies s, refreshes its idle deadline and writes it back with
// compare-and-swap on the version it was read at.
func (o *Orchestrator) commit(ctx context.Context, s *model.AuditSession) error {
	from := s.State
	if err := s.Transition(s.Classify()); err != nil {
		return eris.Wrap(err, "acquisition: classify")
	}
	return o.save(ctx, s, from)
}

func (o *Orchestrator) save(ctx context.Context, s *model.AuditSession, from model.SessionState) error {
	expected := s.Version
	at := o.now()
	s.UpdatedAt = at
	s.ExpiresAt = at.Add(o.cfg.SessionTTL)

	if err := o.store.UpdateSession(ctx, s, expected); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return eris.Wrapf(ErrConcurrentUpdate, "acquisition: session %s", s.ID)
		}
		if errors.Is(err, store.ErrNotFound) {
			return eris.Wrapf(ErrSessionExpired, "acquisition: session %s not found", s.ID)
		}
		return eris.Wrap(err, "acquisition: update session")
	}

	if from != s.State {
		o.metrics.IncSessionState(string(s.State))
		zap.L().Info("acquisition: session transition",
			zap.String("session_id", s.ID),
			zap.String("from", string(from)),
			zap.String("to", string(s.State)),
		)
	}
	return nil
}
