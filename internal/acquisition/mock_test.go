package acquisition

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/audit-flash/internal/condo"
	"github.com/sells-group/audit-flash/pkg/cadastre"
	"github.com/sells-group/audit-flash/pkg/dpe"
	"github.com/sells-group/audit-flash/pkg/dvf"
	"github.com/sells-group/audit-flash/pkg/geocode"
)

// --- Geocoder Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, query string) (*geocode.Result, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

// --- Cadastre Mock ---

type mockCadastre struct {
	mock.Mock
}

func (m *mockCadastre) ParcelAt(ctx context.Context, lat, lon float64) (*cadastre.Parcel, error) {
	args := m.Called(ctx, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cadastre.Parcel), args.Error(1)
}

// --- Condo Registry Mock ---

type mockCondos struct {
	mock.Mock
}

func (m *mockCondos) Find(ctx context.Context, street, postalCode string) (*condo.Record, error) {
	args := m.Called(ctx, street, postalCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*condo.Record), args.Error(1)
}

// --- DPE Mock ---

type mockEnergy struct {
	mock.Mock
}

func (m *mockEnergy) Certificates(ctx context.Context, lat, lon float64) ([]dpe.Certificate, error) {
	args := m.Called(ctx, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dpe.Certificate), args.Error(1)
}

// --- DVF Mock ---

type mockMarket struct {
	mock.Mock
}

func (m *mockMarket) Sales(ctx context.Context, lat, lon float64) ([]dvf.Sale, error) {
	args := m.Called(ctx, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dvf.Sale), args.Error(1)
}
