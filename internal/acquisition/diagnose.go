package acquisition

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/engine"
	"github.com/sells-group/audit-flash/internal/model"
)

// DiagnoseParams are the caller-supplied parts of a diagnostic; the rest
// comes from the session record.
type DiagnoseParams struct {
	TargetClass      model.EnergyClass     `json:"target_class"`
	RenovationCost   *model.CostEstimate   `json:"renovation_cost,omitempty"`
	IncomeMix        []model.IncomeShare   `json:"income_mix,omitempty"`
	Ownership        *model.OwnershipShare `json:"ownership,omitempty"`
	AnnualEnergyBill float64               `json:"annual_energy_bill"`
	LocalAid         float64               `json:"local_aid"`
	// AsOf defaults to the current date.
	AsOf time.Time `json:"as_of"`
}

// Input builds the engine input from a reconciled record.
func Input(g model.GoldenData, p DiagnoseParams) model.DiagnosticInput {
	return model.DiagnosticInput{
		CurrentClass:       g.EnergyClass.Value,
		TargetClass:        p.TargetClass,
		Units:              g.Units.Value,
		AverageUnitSurface: g.AverageUnitSurface(),
		RenovationCost:     p.RenovationCost,
		PricePerSqm:        g.PricePerSqm.Value,
		PriceOrigin:        g.PricePerSqm.Origin,
		SalesCount:         g.SalesCount.Value,
		IncomeMix:          p.IncomeMix,
		Ownership:          p.Ownership,
		AnnualEnergyBill:   p.AnnualEnergyBill,
		LocalAid:           p.LocalAid,
		AsOf:               p.AsOf,
	}
}

// Diagnose consumes a READY session: it runs the engine on the session
// record, stores the diagnostic and marks the session COMPLETED. A DRAFT
// session yields ErrSessionNotReady; a consumed one ErrSessionExpired.
func (o *Orchestrator) Diagnose(ctx context.Context, sessionID string, p DiagnoseParams) (*model.DiagnosticRecord, error) {
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	s, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch s.State {
	case model.StateDraft:
		return nil, eris.Wrapf(ErrSessionNotReady, "acquisition: session %s missing %d fields", sessionID, len(s.MissingFields))
	case model.StateCompleted:
		return nil, eris.Wrapf(ErrSessionExpired, "acquisition: session %s already consumed", sessionID)
	}

	now := o.now()
	if p.AsOf.IsZero() {
		p.AsOf = now
	}
	in := Input(s.Data, p)
	if err := engine.ValidateInput(in); err != nil {
		return nil, err
	}
	result := o.engine.Compute(in).Rounded()

	rec := &model.DiagnosticRecord{
		ID:        o.newID(),
		SessionID: s.ID,
		Input:     in,
		Result:    result,
		CreatedAt: now,
	}
	// The diagnostic is stored before the session is consumed so a failed
	// write leaves the session READY for another attempt.
	if err := o.store.SaveDiagnostic(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "acquisition: save diagnostic")
	}

	from := s.State
	if err := s.Transition(model.StateCompleted); err != nil {
		return nil, eris.Wrap(err, "acquisition: complete session")
	}
	if err := o.save(ctx, s, from); err != nil {
		zap.L().Warn("acquisition: diagnostic stored but session not consumed",
			zap.String("session_id", s.ID),
			zap.String("diagnostic_id", rec.ID),
			zap.Error(err),
		)
		return nil, err
	}

	o.metrics.IncDiagnostics()
	zap.L().Info("acquisition: diagnostic recorded",
		zap.String("session_id", s.ID),
		zap.String("diagnostic_id", rec.ID),
		zap.String("current_class", string(in.CurrentClass)),
		zap.String("target_class", string(in.TargetClass)),
	)
	return rec, nil
}

// Diagnostic returns a stored diagnostic.
func (o *Orchestrator) Diagnostic(ctx context.Context, id string) (*model.DiagnosticRecord, error) {
	rec, err := o.store.GetDiagnostic(ctx, id)
	return rec, eris.Wrap(err, "acquisition: get diagnostic")
}
