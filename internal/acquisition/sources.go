package acquisition

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-flash/internal/condo"
	"github.com/sells-group/audit-flash/internal/fetcher"
	"github.com/sells-group/audit-flash/internal/market"
	"github.com/sells-group/audit-flash/internal/model"
	"github.com/sells-group/audit-flash/internal/resilience"
	"github.com/sells-group/audit-flash/pkg/dpe"
	"github.com/sells-group/audit-flash/pkg/geocode"
)

// errNoData marks a registry that answered without anything usable.
var errNoData = eris.New("acquisition: no usable data")

// isEmpty reports whether err means "the registry has nothing here" rather
// than a failure.
func isEmpty(err error) bool {
	return errors.Is(err, errNoData) ||
		errors.Is(err, fetcher.ErrNotFound) ||
		errors.Is(err, condo.ErrNotFound) ||
		errors.Is(err, geocode.ErrAddressNotFound)
}

// tripsCircuit counts only genuine registry failures against a breaker.
func tripsCircuit(err error) bool {
	return err != nil && !isEmpty(err) && !errors.Is(err, context.Canceled)
}

func statusOf(err error) model.SourceStatus {
	switch {
	case err == nil:
		return model.SourceOK
	case isEmpty(err):
		return model.SourceEmpty
	case errors.Is(err, resilience.ErrCircuitOpen):
		return model.SourceCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return model.SourceTimeout
	default:
		return model.SourceFailed
	}
}

func report(source string, stats resilience.Stats, err error) model.SourceReport {
	r := model.SourceReport{
		Source:     source,
		Status:     statusOf(err),
		Attempts:   stats.Attempts,
		DurationMs: stats.Duration.Milliseconds(),
	}
	if err != nil && !isEmpty(err) {
		r.Error = err.Error()
	}
	return r
}

// site is what the secondary registries are queried with.
type site struct {
	Lat, Lon   float64
	Street     string
	PostalCode string
}

// identity converts a normalized address into the identity fields.
func identity(r *geocode.Result, at time.Time) model.GoldenData {
	var g model.GoldenData
	if r.Label != "" {
		g.Address = model.FromAPI(r.Label, SourceBAN, at)
	}
	if r.PostCode != "" {
		g.PostalCode = model.FromAPI(r.PostCode, SourceBAN, at)
	}
	if r.City != "" {
		g.City = model.FromAPI(r.City, SourceBAN, at)
	}
	if r.CityCode != "" {
		g.CityCode = model.FromAPI(r.CityCode, SourceBAN, at)
	}
	g.Location = model.FromAPI(model.Coordinates{Lat: r.Latitude, Lon: r.Longitude}, SourceBAN, at)
	return g
}

func siteOf(r *geocode.Result) site {
	return site{
		Lat:        r.Latitude,
		Lon:        r.Longitude,
		Street:     strings.TrimSpace(r.HouseNumber + " " + r.Street),
		PostalCode: r.PostCode,
	}
}

// task is one secondary registry lookup producing a partial record over its
// own fields.
type task struct {
	source string
	fetch  func(ctx context.Context, s site, at time.Time) (model.GoldenData, error)
}

// tasks lists the configured registries in merge order.
func (o *Orchestrator) tasks() []task {
	return []task{
		{source: SourceCadastre, fetch: o.fetchParcel},
		{source: SourceCondo, fetch: o.fetchCondo},
		{source: SourceEnergy, fetch: o.fetchEnergy},
		{source: SourceMarket, fetch: o.fetchMarket},
	}
}

func (o *Orchestrator) configured(source string) bool {
	switch source {
	case SourceCadastre:
		return o.src.Cadastre != nil
	case SourceCondo:
		return o.src.Condos != nil
	case SourceEnergy:
		return o.src.Energy != nil
	case SourceMarket:
		return o.src.Market != nil
	default:
		return false
	}
}

func (o *Orchestrator) fetchParcel(ctx context.Context, s site, at time.Time) (model.GoldenData, error) {
	var g model.GoldenData
	p, err := o.src.Cadastre.ParcelAt(ctx, s.Lat, s.Lon)
	if err != nil {
		return g, err
	}
	if p.ID == "" {
		return g, errNoData
	}
	g.ParcelID = model.FromAPI(p.ID, SourceCadastre, at)
	if p.Footprint > 0 {
		g.Footprint = model.FromAPI(p.Footprint, SourceCadastre, at)
	}
	return g, nil
}

func (o *Orchestrator) fetchCondo(ctx context.Context, s site, at time.Time) (model.GoldenData, error) {
	var g model.GoldenData
	if s.Street == "" || s.PostalCode == "" {
		return g, eris.Wrap(errNoData, "acquisition: no street to match")
	}
	rec, err := o.src.Condos.Find(ctx, s.Street, s.PostalCode)
	if err != nil {
		return g, err
	}
	g.CondoID = model.FromAPI(rec.ID, SourceCondo, at)
	if rec.Units > 0 {
		g.Units = model.FromAPI(rec.Units, SourceCondo, at)
	}
	if rec.ManagerName != "" {
		g.ManagerName = model.FromAPI(rec.ManagerName, SourceCondo, at)
	}
	return g, nil
}

func (o *Orchestrator) fetchEnergy(ctx context.Context, s site, at time.Time) (model.GoldenData, error) {
	var g model.GoldenData
	certs, err := o.src.Energy.Certificates(ctx, s.Lat, s.Lon)
	if err != nil {
		return g, err
	}
	cert, ok := dpe.Best(certs)
	if !ok {
		return g, errNoData
	}
	class, err := model.ParseEnergyClass(cert.Class)
	if err != nil {
		return g, eris.Wrapf(errNoData, "acquisition: certificate %s class %q", cert.Number, cert.Class)
	}

	g.EnergyClass = model.FromAPI(class, SourceEnergy, at)
	if cert.Number != "" {
		g.CertificateID = model.FromAPI(cert.Number, SourceEnergy, at)
	}
	if cert.Consumption > 0 {
		g.Consumption = model.FromAPI(cert.Consumption, SourceEnergy, at)
	}
	if cert.ConstructionYear > 0 {
		g.ConstructionYear = model.FromAPI(cert.ConstructionYear, SourceEnergy, at)
	}
	// A flat certificate's surface is one unit, not the building.
	if cert.BuildingLevel() && cert.BuildingSurface > 0 {
		g.Surface = model.FromAPI(cert.BuildingSurface, SourceEnergy, at)
	}
	return g, nil
}

func (o *Orchestrator) fetchMarket(ctx context.Context, s site, at time.Time) (model.GoldenData, error) {
	var g model.GoldenData
	sales, err := o.src.Market.Sales(ctx, s.Lat, s.Lon)
	if err != nil {
		return g, err
	}
	est, ok := market.Average(sales, o.engine.Table().Market, at)
	if !ok {
		return g, errNoData
	}
	g.PricePerSqm = model.FromAPI(est.PricePerSqm, SourceMarket, at)
	g.SalesCount = model.FromAPI(est.SalesCount, SourceMarket, at)
	g.ObservationPeriod = model.FromAPI(model.Period{From: est.From, To: est.To}, SourceMarket, at)
	return g, nil
}
