package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/audit-flash/internal/acquisition"
	"github.com/sells-group/audit-flash/internal/allocator"
	"github.com/sells-group/audit-flash/internal/engine"
	"github.com/sells-group/audit-flash/internal/model"
)

const maxBodyBytes = 1 << 20

// InitRequest starts an audit.
type InitRequest struct {
	Address string `json:"address"`
}

// CompleteRequest carries manual values keyed by missing-field key.
type CompleteRequest struct {
	Values map[string]any `json:"values"`
}

// AllocationRequest asks for one owner's share of a building plan.
type AllocationRequest struct {
	Financing model.Financing      `json:"financing"`
	Valuation model.Valuation      `json:"valuation"`
	Ownership model.OwnershipShare `json:"ownership"`
}

// decode reads a JSON body into v. Numbers in untyped values stay
// json.Number so integers survive intact.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"circuits": h.svc.CircuitStates(),
	})
}

func (h *Handler) initAudit(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		badRequest(w, "address is required")
		return
	}

	res, err := h.svc.Init(r.Context(), req.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Status == model.StateDraft {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (h *Handler) getAudit(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) completeAudit(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Values) == 0 {
		badRequest(w, "values are required")
		return
	}

	res, err := h.svc.Complete(r.Context(), chi.URLParam(r, "id"), req.Values)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) refreshAudit(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) diagnoseAudit(w http.ResponseWriter, r *http.Request) {
	var p acquisition.DiagnoseParams
	if !decode(w, r, &p) {
		return
	}

	rec, err := h.svc.Diagnose(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) getDiagnostic(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Diagnostic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// computeDiagnostic runs the engine on a caller-built input without any
// session.
func (h *Handler) computeDiagnostic(w http.ResponseWriter, r *http.Request) {
	var in model.DiagnosticInput
	if !decode(w, r, &in) {
		return
	}
	if in.AsOf.IsZero() {
		in.AsOf = h.now()
	}
	if err := engine.ValidateInput(in); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Compute(in).Rounded())
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if !decode(w, r, &req) {
		return
	}
	o := req.Ownership
	if o.TotalTantiemes <= 0 || o.Tantiemes <= 0 || o.Tantiemes > o.TotalTantiemes {
		verr := &model.ValidationError{}
		verr.Add("ownership", "tantièmes must be positive and at most the building total")
		writeError(w, r, verr)
		return
	}
	writeJSON(w, http.StatusOK, allocator.OwnerShare(req.Financing, req.Valuation, o).Rounded())
}
