package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-flash/internal/acquisition"
	"github.com/sells-group/audit-flash/internal/engine"
	"github.com/sells-group/audit-flash/internal/metrics"
	"github.com/sells-group/audit-flash/internal/model"
	"github.com/sells-group/audit-flash/internal/regulation"
	"github.com/sells-group/audit-flash/internal/store"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type mockService struct {
	mock.Mock
}

func (m *mockService) Init(ctx context.Context, address string) (model.AuditResult, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(model.AuditResult), args.Error(1)
}

func (m *mockService) Complete(ctx context.Context, tempID string, values map[string]any) (model.AuditResult, error) {
	args := m.Called(ctx, tempID, values)
	return args.Get(0).(model.AuditResult), args.Error(1)
}

func (m *mockService) Refresh(ctx context.Context, sessionID string) (model.AuditResult, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(model.AuditResult), args.Error(1)
}

func (m *mockService) Session(ctx context.Context, id string) (*model.AuditSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuditSession), args.Error(1)
}

func (m *mockService) Diagnose(ctx context.Context, sessionID string, p acquisition.DiagnoseParams) (*model.DiagnosticRecord, error) {
	args := m.Called(ctx, sessionID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiagnosticRecord), args.Error(1)
}

func (m *mockService) Diagnostic(ctx context.Context, id string) (*model.DiagnosticRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiagnosticRecord), args.Error(1)
}

func (m *mockService) CircuitStates() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func newTestServer(t *testing.T, svc Service, opts RouterOptions) *httptest.Server {
	t.Helper()
	h := NewHandler(svc, engine.New(regulation.Default()), func() time.Time { return testNow })
	srv := httptest.NewServer(NewRouter(h, opts))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestHealth(t *testing.T) {
	svc := &mockService{}
	svc.On("CircuitStates").Return(map[string]string{"ban": "closed"})
	srv := newTestServer(t, svc, RouterOptions{})

	resp, data := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body struct {
		Status   string            `json:"status"`
		Circuits map[string]string `json:"circuits"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "closed", body.Circuits["ban"])
}

func TestInitAudit_StatusByState(t *testing.T) {
	svc := &mockService{}
	svc.On("Init", mock.Anything, "1 rue ready").
		Return(model.AuditResult{Status: model.StateReady, SessionID: "s-1"}, nil)
	svc.On("Init", mock.Anything, "2 rue draft").
		Return(model.AuditResult{
			Status:        model.StateDraft,
			SessionID:     "s-2",
			TempID:        "s-2",
			MissingFields: []model.MissingField{{Key: model.KeyEnergyClass, InputType: model.InputSelect}},
		}, nil)
	srv := newTestServer(t, svc, RouterOptions{})

	resp, data := do(t, srv, http.MethodPost, "/audits", `{"address":"1 rue ready"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ready model.AuditResult
	require.NoError(t, json.Unmarshal(data, &ready))
	assert.Equal(t, "s-1", ready.SessionID)

	resp, data = do(t, srv, http.MethodPost, "/audits", `{"address":"2 rue draft"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var draft model.AuditResult
	require.NoError(t, json.Unmarshal(data, &draft))
	assert.Equal(t, "s-2", draft.TempID)
	require.Len(t, draft.MissingFields, 1)
	assert.Equal(t, model.KeyEnergyClass, draft.MissingFields[0].Key)
}

func TestInitAudit_BadRequests(t *testing.T) {
	svc := &mockService{}
	srv := newTestServer(t, svc, RouterOptions{})

	for name, body := range map[string]string{
		"malformed":     `{"address":`,
		"empty address": `{"address":"  "}`,
		"unknown field": `{"adress":"1 rue"}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, data := do(t, srv, http.MethodPost, "/audits", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, CodeBadRequest, decodeError(t, data).Error)
		})
	}
	svc.AssertNotCalled(t, "Init", mock.Anything, mock.Anything)
}

func TestInitAudit_AddressErrors(t *testing.T) {
	svc := &mockService{}
	svc.On("Init", mock.Anything, "nowhere").
		Return(model.AuditResult{}, eris.Wrap(acquisition.ErrAddressNotFound, "acquisition: \"nowhere\""))
	svc.On("Init", mock.Anything, "ban down").
		Return(model.AuditResult{}, eris.Wrap(acquisition.ErrAddressUnavailable, "acquisition: timeout"))
	srv := newTestServer(t, svc, RouterOptions{})

	resp, data := do(t, srv, http.MethodPost, "/audits", `{"address":"nowhere"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeAddressNotFound, decodeError(t, data).Error)

	resp, data = do(t, srv, http.MethodPost, "/audits", `{"address":"ban down"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, CodeUpstreamUnavailable, decodeError(t, data).Error)
}

func TestCompleteAudit(t *testing.T) {
	svc := &mockService{}
	svc.On("Complete", mock.Anything, "t-1", mock.MatchedBy(func(v map[string]any) bool {
		n, ok := v[model.KeyUnitCount].(json.Number)
		return ok && n.String() == "24" && v[model.KeyEnergyClass] == "F"
	})).Return(model.AuditResult{Status: model.StateReady, SessionID: "t-1"}, nil)
	srv := newTestServer(t, svc, RouterOptions{})

	resp, data := do(t, srv, http.MethodPost, "/audits/t-1/complete", `{"values":{"unitCount":24,"currentEnergyClass":"F"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var res model.AuditResult
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, model.StateReady, res.Status)
}

func TestCompleteAudit_Errors(t *testing.T) {
	verr := &model.ValidationError{}
	verr.Add(model.KeyEnergyClass, "expected a letter A–G")

	tests := []struct {
		name   string
		id     string
		err    error
		status int
		code   string
	}{
		{"validation", "t-val", verr, http.StatusUnprocessableEntity, CodeValidation},
		{"expired", "t-exp", eris.Wrap(acquisition.ErrSessionExpired, "acquisition: session t-exp not found"), http.StatusNotFound, CodeSessionExpired},
		{"conflict", "t-cas", eris.Wrap(acquisition.ErrConcurrentUpdate, "acquisition: session t-cas"), http.StatusConflict, CodeConcurrentUpdate},
		{"internal", "t-500", errors.New("disk full"), http.StatusInternalServerError, CodeInternal},
	}

	svc := &mockService{}
	for _, tt := range tests {
		svc.On("Complete", mock.Anything, tt.id, mock.Anything).Return(model.AuditResult{}, tt.err)
	}
	srv := newTestServer(t, svc, RouterOptions{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, srv, http.MethodPost, "/audits/"+tt.id+"/complete", `{"values":{"currentEnergyClass":"Z"}}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeError(t, data)
			assert.Equal(t, tt.code, body.Error)
			if tt.status == http.StatusInternalServerError {
				assert.Empty(t, body.Message)
			} else {
				assert.NotEmpty(t, body.Message)
			}
			if tt.code == CodeValidation {
				assert.Contains(t, body.Fields, model.KeyEnergyClass)
			}
		})
	}
}

func TestCompleteAudit_RequiresValues(t *testing.T) {
	svc := &mockService{}
	srv := newTestServer(t, svc, RouterOptions{})

	resp, _ := do(t, srv, http.MethodPost, "/audits/t-1/complete", `{"values":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAndRefreshAudit(t *testing.T) {
	svc := &mockService{}
	svc.On("Session", mock.Anything, "s-1").Return(&model.AuditSession{ID: "s-1", State: model.StateReady, Version: 3}, nil)
	svc.On("Session", mock.Anything, "gone").Return(nil, eris.Wrap(acquisition.ErrSessionExpired, "acquisition: session gone not found"))
	svc.On("Refresh", mock.Anything, "s-1").Return(model.AuditResult{Status: model.StateReady, SessionID: "s-1"}, nil)
	srv := newTestServer(t, svc, RouterOptions{})

	resp, data := do(t, srv, http.MethodGet, "/audits/s-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s model.AuditSession
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, int64(3), s.Version)

	resp, _ = do(t, srv, http.MethodGet, "/audits/gone", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/audits/s-1/refresh", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDiagnoseAudit(t *testing.T) {
	svc := &mockService{}
	svc.On("Diagnose", mock.Anything, "draft", mock.Anything).
		Return(nil, eris.Wrap(acquisition.ErrSessionNotReady, "acquisition: session draft missing 1 fields"))
	svc.On("Diagnose", mock.Anything, "ready", mock.MatchedBy(func(p acquisition.DiagnoseParams) bool {
		return p.TargetClass == model.ClassC && p.AnnualEnergyBill == 24000 && len(p.IncomeMix) == 1
	})).Return(&model.DiagnosticRecord{ID: "d-1", SessionID: "ready"}, nil)
	svc.On("Diagnostic", mock.Anything, "d-1").Return(&model.DiagnosticRecord{ID: "d-1", SessionID: "ready"}, nil)
	svc.On("Diagnostic", mock.Anything, "d-x").Return(nil, eris.Wrap(store.ErrNotFound, "acquisition: get diagnostic"))
	srv := newTestServer(t, svc, RouterOptions{})

	resp, data := do(t, srv, http.MethodPost, "/audits/draft/diagnostic", `{"target_class":"C"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeSessionNotReady, decodeError(t, data).Error)

	body := `{"target_class":"C","annual_energy_bill":24000,"income_mix":[{"tier":"modest","units":4}]}`
	resp, data = do(t, srv, http.MethodPost, "/audits/ready/diagnostic", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var rec model.DiagnosticRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "d-1", rec.ID)

	resp, _ = do(t, srv, http.MethodGet, "/diagnostics/d-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = do(t, srv, http.MethodGet, "/diagnostics/d-x", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeNotFound, decodeError(t, data).Error)
}

func TestComputeDiagnostic(t *testing.T) {
	srv := newTestServer(t, &mockService{}, RouterOptions{})

	in := model.DiagnosticInput{
		CurrentClass:       model.ClassF,
		TargetClass:        model.ClassC,
		Units:              20,
		AverageUnitSurface: 65,
		PricePerSqm:        5000,
		PriceOrigin:        model.OriginAPI,
		SalesCount:         12,
	}
	payload, err := json.Marshal(in)
	require.NoError(t, err)
	// Drop as_of so the handler dates the diagnostic itself.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	delete(raw, "as_of")
	payload, err = json.Marshal(raw)
	require.NoError(t, err)

	resp, data := do(t, srv, http.MethodPost, "/diagnostics", string(payload))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var res model.DiagnosticResult
	require.NoError(t, json.Unmarshal(data, &res))
	assert.False(t, res.Compliance.IsProhibited)
	assert.Equal(t, 657, res.Compliance.DaysUntilProhibition)
	assert.InDelta(t, 455000, res.Financing.Cost.WorksHT, 0.5)
	assert.GreaterOrEqual(t, res.Financing.RemainingCost, 0.0)
	assert.Equal(t, 12, res.Valuation.SalesCount)
}

func TestComputeDiagnostic_UntaggedPriceIsManual(t *testing.T) {
	srv := newTestServer(t, &mockService{}, RouterOptions{})

	resp, data := do(t, srv, http.MethodPost, "/diagnostics",
		`{"current_class":"F","target_class":"C","units":20,"average_unit_surface":65,"price_per_sqm":4200}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var res model.DiagnosticResult
	require.NoError(t, json.Unmarshal(data, &res))
	assert.InDelta(t, 4200, res.Valuation.PricePerSqm, 1e-9)
	assert.Equal(t, model.OriginManual, res.Valuation.PriceOrigin)
}

func TestComputeDiagnostic_Invalid(t *testing.T) {
	srv := newTestServer(t, &mockService{}, RouterOptions{})

	resp, data := do(t, srv, http.MethodPost, "/diagnostics",
		`{"current_class":"C","target_class":"F","units":0,"average_unit_surface":65,"price_per_sqm":3000,"sales_count":1,"annual_energy_bill":0,"local_aid":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeError(t, data)
	assert.Equal(t, CodeValidation, body.Error)
	assert.Contains(t, body.Fields, "target_class")
	assert.Contains(t, body.Fields, "units")
}

func TestAllocate(t *testing.T) {
	srv := newTestServer(t, &mockService{}, RouterOptions{})

	req := AllocationRequest{
		Financing: model.Financing{
			Cost:           model.CostBreakdown{TotalTTC: 480025},
			TotalSubsidies: 180000,
			RemainingCost:  300025,
			LoanAmount:     300025,
			MonthlyPayment: 1250.20,
		},
		Valuation: model.Valuation{GreenValueGain: 650000},
		Ownership: model.OwnershipShare{Tantiemes: 50, TotalTantiemes: 1000},
	}
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	resp, data := do(t, srv, http.MethodPost, "/allocations", string(payload))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var share model.Share
	require.NoError(t, json.Unmarshal(data, &share))
	assert.InDelta(t, 0.05, share.Ratio, 1e-12)
	assert.InDelta(t, 24001, share.Cost, 1e-9)
	assert.InDelta(t, 9000, share.Subsidies, 1e-9)
	assert.InDelta(t, 62.51, share.MonthlyPayment, 1e-9)
	assert.InDelta(t, 32500, share.GreenValueGain, 1e-9)
}

func TestAllocate_InvalidOwnership(t *testing.T) {
	srv := newTestServer(t, &mockService{}, RouterOptions{})

	resp, data := do(t, srv, http.MethodPost, "/allocations", `{"ownership":{"tantiemes":1200,"total_tantiemes":1000}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decodeError(t, data).Fields, "ownership")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncDiagnostics()
	srv := newTestServer(t, &mockService{}, RouterOptions{Gatherer: reg})

	resp, data := do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "audit_diagnostics_computed_total 1")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	srv := newTestServer(t, &mockService{}, RouterOptions{})
	resp, _ := do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &mockService{}, RouterOptions{AllowedOrigins: []string{"https://app.example.fr"}})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/audits", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.fr")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "https://app.example.fr", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestIDHeaderAccepted(t *testing.T) {
	svc := &mockService{}
	svc.On("CircuitStates").Return(map[string]string{})
	srv := newTestServer(t, svc, RouterOptions{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-42")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
