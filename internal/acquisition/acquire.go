package acquisition

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/audit-flash/internal/model"
	"github.com/sells-group/audit-flash/internal/resilience"
	"github.com/sells-group/audit-flash/pkg/geocode"
)

// Derivation rules recorded as the Source of estimated and fallback values.
const (
	RuleSurfaceFromUnits = "units_x_average_unit_surface"
	RuleMarketFallback   = "market_fallback_price"
)

// normalize resolves the address through the geocoder. It is the only hard
// dependency of an acquisition.
func (o *Orchestrator) normalize(ctx context.Context, query string) (*geocode.Result, model.SourceReport, error) {
	if o.src.Geocoder == nil {
		return nil, model.SourceReport{Source: SourceBAN, Status: model.SourceSkipped},
			eris.Wrap(ErrAddressUnavailable, "acquisition: no geocoder configured")
	}

	res, stats, err := resilience.Call(ctx, o.breakers.Get(SourceBAN), o.policy(SourceBAN, "geocode"),
		func(ctx context.Context) (*geocode.Result, error) {
			return o.src.Geocoder.Geocode(ctx, query)
		})
	rep := report(SourceBAN, stats, err)
	o.metrics.ObserveRegistryCall(SourceBAN, string(rep.Status), stats.Duration)

	switch {
	case err == nil:
		return res, rep, nil
	case errors.Is(err, geocode.ErrAddressNotFound):
		return nil, rep, eris.Wrapf(ErrAddressNotFound, "acquisition: %q", query)
	default:
		zap.L().Warn("acquisition: address normalization failed",
			zap.String("source", SourceBAN),
			zap.String("query", query),
			zap.Error(err),
		)
		return nil, rep, eris.Wrapf(ErrAddressUnavailable, "acquisition: %s", rep.Status)
	}
}

// collect normalizes query and fans out to every secondary registry. The
// returned record holds registry values only; reports list every source in
// a fixed order.
func (o *Orchestrator) collect(ctx context.Context, query string, at time.Time) (model.GoldenData, []model.SourceReport, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.GoldenData{}, nil, eris.Wrap(ErrAddressNotFound, "acquisition: empty address")
	}

	// The deadline covers normalization and the fan-out together.
	dctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	addr, banReport, err := o.normalize(dctx, query)
	if err != nil {
		return model.GoldenData{}, []model.SourceReport{banReport}, err
	}
	data := identity(addr, at)
	st := siteOf(addr)

	log := zap.L().With(zap.String("address", addr.Label))

	type slot struct {
		patch  model.GoldenData
		report model.SourceReport
	}
	tasks := o.tasks()
	slots := make([]slot, len(tasks))

	g, gCtx := errgroup.WithContext(dctx)
	for i, t := range tasks {
		if !o.configured(t.source) {
			slots[i].report = model.SourceReport{Source: t.source, Status: model.SourceSkipped}
			continue
		}
		g.Go(func() error {
			patch, stats, err := resilience.Call(gCtx, o.breakers.Get(t.source), o.policy(t.source, "lookup"),
				func(ctx context.Context) (model.GoldenData, error) {
					return t.fetch(ctx, st, at)
				})
			rep := report(t.source, stats, err)
			o.metrics.ObserveRegistryCall(t.source, string(rep.Status), stats.Duration)

			switch rep.Status {
			case model.SourceOK:
				slots[i].patch = patch
				log.Debug("acquisition: source answered",
					zap.String("source", t.source),
					zap.Int("attempts", rep.Attempts),
					zap.Int64("duration_ms", rep.DurationMs),
				)
			case model.SourceEmpty:
				log.Info("acquisition: source has no data", zap.String("source", t.source))
			default:
				log.Warn("acquisition: source failed",
					zap.String("source", t.source),
					zap.String("status", string(rep.Status)),
					zap.Int("attempts", rep.Attempts),
					zap.Error(err),
				)
			}
			slots[i].report = rep
			return nil
		})
	}
	// Failures are recorded per source and never abort the acquisition.
	_ = g.Wait()

	reports := make([]model.SourceReport, 0, len(slots)+1)
	reports = append(reports, banReport)
	for _, s := range slots {
		data = data.Overlay(s.patch)
		reports = append(reports, s.report)
	}
	return data, reports, nil
}

// estimate fills derivable gaps and tags them: surface from the unit count,
// and the configured market price when no sale was found. Registry and
// manual values are never touched.
func (o *Orchestrator) estimate(g model.GoldenData, at time.Time) model.GoldenData {
	terms := o.engine.Table().Market
	var patch model.GoldenData

	if !g.Surface.Present() || g.Surface.Origin == model.OriginEstimated {
		if u, ok := g.Units.Get(); ok && u > 0 && terms.AverageUnitSurface > 0 {
			patch.Surface = model.Estimated(float64(u)*terms.AverageUnitSurface, RuleSurfaceFromUnits, at)
		}
	}
	if !g.PricePerSqm.Present() {
		patch.PricePerSqm = model.Fallback(terms.FallbackPricePerSqm, RuleMarketFallback, at)
		if !g.SalesCount.Present() {
			patch.SalesCount = model.Fallback(0, RuleMarketFallback, at)
		}
	}
	return g.Overlay(patch)
}
