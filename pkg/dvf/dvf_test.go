package dvf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestSales(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dvf", r.URL.Path)
		assert.Equal(t, "48.856600", r.URL.Query().Get("lat"))
		assert.Equal(t, "2.352200", r.URL.Query().Get("lon"))
		assert.Equal(t, "300", r.URL.Query().Get("dist"))
		_, _ = w.Write([]byte(`{"resultats":[
			{"id_mutation":"2024-1","date_mutation":"2024-03-15","nature_mutation":"Vente","valeur_fonciere":420000,"type_local":"Appartement","surface_reelle_bati":60,"code_postal":"75004"},
			{"id_mutation":"2024-2","date_mutation":"2024-04-01","nature_mutation":"Vente","valeur_fonciere":null,"type_local":"Dépendance","surface_reelle_bati":null},
			{"id_mutation":"bad","date_mutation":"15/03/2024","nature_mutation":"Vente"}
		]}`))
	}))
	defer srv.Close()

	c := &client{baseURL: srv.URL, httpClient: http.DefaultClient, limiter: rate.NewLimiter(rate.Inf, 1), radius: 300}
	sales, err := c.Sales(context.Background(), 48.8566, 2.3522)
	require.NoError(t, err)
	require.Len(t, sales, 2)

	assert.Equal(t, "2024-1", sales[0].ID)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), sales[0].Date)
	assert.Equal(t, NatureSale, sales[0].Nature)
	assert.Equal(t, TypeFlat, sales[0].LocalType)
	assert.InDelta(t, 7000, sales[0].PricePerSqm(), 1e-9)

	assert.Zero(t, sales[1].Price)
	assert.Zero(t, sales[1].PricePerSqm())
}

func TestSales_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL), WithRateLimit(100)).Sales(context.Background(), 48.85, 2.35)
	assert.Error(t, err)
}
