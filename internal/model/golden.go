package model

import "time"

// Field keys used in missing-field lists, manual values and provenance history.
const (
	KeyAddress           = "address"
	KeyPostalCode        = "postalCode"
	KeyCity              = "city"
	KeyCityCode          = "cityCode"
	KeyLocation          = "location"
	KeySurface           = "surface"
	KeyUnitCount         = "unitCount"
	KeyConstructionYear  = "constructionYear"
	KeyEnergyClass       = "currentEnergyClass"
	KeyConsumption       = "consumption"
	KeyPricePerSqm       = "pricePerSqm"
	KeySalesCount        = "salesCount"
	KeyObservationPeriod = "observationPeriod"
	KeyCondoID           = "condoId"
	KeyManagerName       = "managerName"
	KeyParcelID          = "parcelId"
	KeyFootprint         = "footprint"
	KeyCertificateID     = "certificateId"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Period is the observation window of a market sample.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// GoldenData is the reconciled, provenance-tagged property record.
type GoldenData struct {
	// Identity
	Address    Field[string]      `json:"address"`
	PostalCode Field[string]      `json:"postal_code"`
	City       Field[string]      `json:"city"`
	CityCode   Field[string]      `json:"city_code"`
	Location   Field[Coordinates] `json:"location"`

	// Physical
	Surface          Field[float64] `json:"surface"`
	Units            Field[int]     `json:"units"`
	ConstructionYear Field[int]     `json:"construction_year"`
	ParcelID         Field[string]  `json:"parcel_id"`
	Footprint        Field[float64] `json:"footprint"`

	// Energy
	EnergyClass   Field[EnergyClass] `json:"energy_class"`
	Consumption   Field[float64]     `json:"consumption"`
	CertificateID Field[string]      `json:"certificate_id"`

	// Market
	PricePerSqm       Field[float64] `json:"price_per_sqm"`
	SalesCount        Field[int]     `json:"sales_count"`
	ObservationPeriod Field[Period]  `json:"observation_period"`

	// Ownership
	CondoID     Field[string] `json:"condo_id"`
	ManagerName Field[string] `json:"manager_name"`

	History []ProvenanceEvent `json:"history,omitempty"`
}

// Overlay returns a copy of g with every present field of src merged in under
// origin precedence. Neither argument is modified.
func (g GoldenData) Overlay(src GoldenData) GoldenData {
	out := g
	out.History = append([]ProvenanceEvent(nil), g.History...)
	h := &out.History

	overlayField(KeyAddress, &out.Address, src.Address, h)
	overlayField(KeyPostalCode, &out.PostalCode, src.PostalCode, h)
	overlayField(KeyCity, &out.City, src.City, h)
	overlayField(KeyCityCode, &out.CityCode, src.CityCode, h)
	overlayField(KeyLocation, &out.Location, src.Location, h)
	overlayField(KeySurface, &out.Surface, src.Surface, h)
	overlayField(KeyUnitCount, &out.Units, src.Units, h)
	overlayField(KeyConstructionYear, &out.ConstructionYear, src.ConstructionYear, h)
	overlayField(KeyParcelID, &out.ParcelID, src.ParcelID, h)
	overlayField(KeyFootprint, &out.Footprint, src.Footprint, h)
	overlayField(KeyEnergyClass, &out.EnergyClass, src.EnergyClass, h)
	overlayField(KeyConsumption, &out.Consumption, src.Consumption, h)
	overlayField(KeyCertificateID, &out.CertificateID, src.CertificateID, h)
	overlayField(KeyPricePerSqm, &out.PricePerSqm, src.PricePerSqm, h)
	overlayField(KeySalesCount, &out.SalesCount, src.SalesCount, h)
	overlayField(KeyObservationPeriod, &out.ObservationPeriod, src.ObservationPeriod, h)
	overlayField(KeyCondoID, &out.CondoID, src.CondoID, h)
	overlayField(KeyManagerName, &out.ManagerName, src.ManagerName, h)
	return out
}

// Origins returns the provenance tag of every present field keyed by field key.
func (g GoldenData) Origins() map[string]Origin {
	out := make(map[string]Origin)
	add := func(key string, o Origin) {
		if o != "" {
			out[key] = o
		}
	}
	add(KeyAddress, g.Address.Origin)
	add(KeyPostalCode, g.PostalCode.Origin)
	add(KeyCity, g.City.Origin)
	add(KeyCityCode, g.CityCode.Origin)
	add(KeyLocation, g.Location.Origin)
	add(KeySurface, g.Surface.Origin)
	add(KeyUnitCount, g.Units.Origin)
	add(KeyConstructionYear, g.ConstructionYear.Origin)
	add(KeyParcelID, g.ParcelID.Origin)
	add(KeyFootprint, g.Footprint.Origin)
	add(KeyEnergyClass, g.EnergyClass.Origin)
	add(KeyConsumption, g.Consumption.Origin)
	add(KeyCertificateID, g.CertificateID.Origin)
	add(KeyPricePerSqm, g.PricePerSqm.Origin)
	add(KeySalesCount, g.SalesCount.Origin)
	add(KeyObservationPeriod, g.ObservationPeriod.Origin)
	add(KeyCondoID, g.CondoID.Origin)
	add(KeyManagerName, g.ManagerName.Origin)
	return out
}

// AverageUnitSurface returns surface / units, or zero when either is missing.
func (g GoldenData) AverageUnitSurface() float64 {
	s, okS := g.Surface.Get()
	u, okU := g.Units.Get()
	if !okS || !okU || u <= 0 {
		return 0
	}
	return s / float64(u)
}
