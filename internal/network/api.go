package network

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/officer"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/sentence"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/engine"
	"github.com/SirTidez/Behind-Bars-sub007/internal/infra/cache"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
)

// API exposes the lifecycle engine over HTTP. The crime-detection layer
// posts arrests and positions here; station props post stage confirmations;
// the UI reads status.
type API struct {
	engine *engine.Engine
	cache  *cache.CustodyCache // nil when disabled
	hub    *Hub
	logger *logger.Logger
}

// NewAPI wires the HTTP surface.
func NewAPI(eng *engine.Engine, custody *cache.CustodyCache, hub *Hub, log *logger.Logger) *API {
	return &API{engine: eng, cache: custody, hub: hub, logger: log}
}

// Routes registers every handler on a fresh mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/arrest", a.handleArrest)
	mux.HandleFunc("POST /api/booking/confirm", a.handleBookingConfirm)
	mux.HandleFunc("POST /api/release/confirm", a.handleReleaseConfirm)
	mux.HandleFunc("POST /api/bail/negotiate", a.handleBailNegotiate)
	mux.HandleFunc("POST /api/bail/pay", a.handleBailPay)
	mux.HandleFunc("POST /api/fine/pay", a.handleFinePay)
	mux.HandleFunc("POST /api/position", a.handlePosition)
	mux.HandleFunc("POST /api/officer", a.handleOfficer)
	mux.HandleFunc("POST /api/item/give", a.handleGiveItem)
	mux.HandleFunc("GET /api/subject/{id}/status", a.handleStatus)
	mux.HandleFunc("GET /api/subject/{id}/history", a.handleHistory)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(a.hub, w, r)
	})
	return mux
}

type arrestRequest struct {
	Subject   subject.Subject       `json:"subject"`
	OfficerID string                `json:"officer_id"`
	Tags      []sentence.OffenseTag `json:"tags"`
}

func (a *API) handleArrest(w http.ResponseWriter, r *http.Request) {
	var req arrestRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Subject.ID == "" {
		httpError(w, http.StatusBadRequest, "subject id required")
		return
	}
	sub := subject.New(req.Subject.ID, req.Subject.Name, req.Subject.Level, req.Subject.WealthTier)
	desc := a.engine.ReportArrest(*sub, req.OfficerID, sentence.CrimeReport{Tags: req.Tags})
	a.respond(w, http.StatusCreated, desc)
}

type stageRequest struct {
	SubjectID subject.ID `json:"subject_id"`
	Stage     string     `json:"stage"`
}

func (a *API) handleBookingConfirm(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if !a.decode(w, r, &req) {
		return
	}
	err := a.engine.ConfirmBookingStage(req.SubjectID, engine.BookingStage(req.Stage))
	a.finish(w, err)
}

func (a *API) handleReleaseConfirm(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if !a.decode(w, r, &req) {
		return
	}
	err := a.engine.ConfirmReleaseStage(req.SubjectID, engine.ReleaseStage(req.Stage))
	a.finish(w, err)
}

type bailRequest struct {
	SubjectID subject.ID `json:"subject_id"`
	Amount    float64    `json:"amount,omitempty"`
}

func (a *API) handleBailNegotiate(w http.ResponseWriter, r *http.Request) {
	var req bailRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.finish(w, a.engine.NegotiateBail(req.SubjectID, req.Amount))
}

func (a *API) handleBailPay(w http.ResponseWriter, r *http.Request) {
	var req bailRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.finish(w, a.engine.PayBail(req.SubjectID))
}

func (a *API) handleFinePay(w http.ResponseWriter, r *http.Request) {
	var req bailRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.finish(w, a.engine.PayFine(req.SubjectID))
}

type positionRequest struct {
	SubjectID subject.ID      `json:"subject_id"`
	Position  subject.Vector3 `json:"position"`
}

func (a *API) handlePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.engine.UpdatePosition(req.SubjectID, req.Position)
	w.WriteHeader(http.StatusNoContent)
}

type officerRequest struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Role     officer.Role    `json:"role"`
	State    officer.State   `json:"state"`
	Position subject.Vector3 `json:"position"`
}

func (a *API) handleOfficer(w http.ResponseWriter, r *http.Request) {
	var req officerRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		httpError(w, http.StatusBadRequest, "officer id required")
		return
	}
	if req.State == "" {
		req.State = officer.StateOnDuty
	}
	a.engine.UpdateOfficer(officer.Officer{
		ID:       req.ID,
		Name:     req.Name,
		Role:     req.Role,
		State:    req.State,
		Position: req.Position,
	})
	w.WriteHeader(http.StatusNoContent)
}

type giveItemRequest struct {
	SubjectID subject.ID `json:"subject_id"`
	Item      string     `json:"item"`
	Quantity  int        `json:"quantity"`
}

func (a *API) handleGiveItem(w http.ResponseWriter, r *http.Request) {
	var req giveItemRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	a.engine.GiveItem(req.SubjectID, req.Item, req.Quantity)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := subject.ID(r.PathValue("id"))
	if a.cache != nil {
		if status, hit, err := a.cache.GetStatus(r.Context(), id); err == nil && hit {
			a.respond(w, http.StatusOK, status)
			return
		}
	}
	status := a.engine.Status(id)
	if a.cache != nil {
		if err := a.cache.SetStatus(r.Context(), status); err != nil {
			a.logger.Debugf("custody cache write for %s: %v", id, err)
		}
	}
	a.respond(w, http.StatusOK, status)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := subject.ID(r.PathValue("id"))
	a.respond(w, http.StatusOK, a.engine.History(id))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.respond(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"game_minutes": a.engine.GameMinutes(),
	})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// finish maps lifecycle errors onto HTTP statuses.
func (a *API) finish(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, engine.ErrMissingRecord):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidNegotiation):
		httpError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, engine.ErrNoCellsAvailable), errors.Is(err, engine.ErrFineNotPayable):
		httpError(w, http.StatusConflict, err.Error())
	default:
		a.logger.Errorf("request failed: %v", err)
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Errorf("encode response: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
