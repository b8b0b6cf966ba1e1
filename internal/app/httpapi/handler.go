// Package httpapi exposes the access layer over REST.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	app "github.com/iacai-network/access-layer/internal/app"
	"github.com/iacai-network/access-layer/internal/app/auth"
	"github.com/iacai-network/access-layer/internal/app/domain/operation"
	"github.com/iacai-network/access-layer/internal/app/domain/purchase"
	"github.com/iacai-network/access-layer/internal/app/metrics"
	gatesvc "github.com/iacai-network/access-layer/internal/app/services/gate"
	"github.com/iacai-network/access-layer/internal/config"
	"github.com/iacai-network/access-layer/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application, cfg config.RateLimitConfig, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tiers", h.tiers).Methods(http.MethodGet)
	api.HandleFunc("/packages", h.packages).Methods(http.MethodGet)
	api.HandleFunc("/operations", h.operations).Methods(http.MethodGet)
	api.HandleFunc("/session", h.session).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/verify", h.verify).Methods(http.MethodPost)

	wallets := api.PathPrefix("/wallets/{address}").Subrouter()
	wallets.Use(newRateLimiter(cfg).middleware)
	wallets.HandleFunc("/balance", h.balance).Methods(http.MethodGet)
	wallets.HandleFunc("/history", h.history).Methods(http.MethodGet)
	wallets.HandleFunc("/receipts", h.receipts).Methods(http.MethodGet)
	wallets.HandleFunc("/purchases", h.purchase).Methods(http.MethodPost)
	wallets.HandleFunc("/authorize", h.authorize).Methods(http.MethodPost)
	wallets.HandleFunc("/spend", h.spend).Methods(http.MethodPost)

	return metrics.InstrumentHandler(logRequests(log, r))
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) tiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, purchase.TierOffers())
}

func (h *handler) packages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, purchase.Packages())
}

func (h *handler) operations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, operation.List())
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.SessionOf(r.Context(), h.app.Provider))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Provider.Login(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.SessionOf(r.Context(), h.app.Provider))
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Provider.Logout(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.SessionOf(r.Context(), h.app.Provider))
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.app.Verifier.Verify(r.Context(), payload.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	record, err := h.app.Ledger.Balance(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Ledger.History(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) receipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.app.Purchases.Receipts(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (h *handler) purchase(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Kind   string `json:"kind"`
		ItemID string `json:"item_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.Purchases.Run(r.Context(), mux.Vars(r)["address"], purchase.Kind(payload.Kind), payload.ItemID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) authorize(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.app.Gate.Authorize)
}

func (h *handler) spend(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.app.Gate.AuthorizeAndDebit)
}

func (h *handler) decide(w http.ResponseWriter, r *http.Request, decide func(ctx context.Context, wallet, operationID string) (gatesvc.Decision, error)) {
	var payload struct {
		OperationID string `json:"operation_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	decision, err := decide(r.Context(), mux.Vars(r)["address"], payload.OperationID)
	if err != nil {
		writeDenial(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// writeDenial maps gate refusals onto HTTP statuses; anything that is not
// a DeniedError is a caller mistake or an internal failure.
func writeDenial(w http.ResponseWriter, err error) {
	var denied *gatesvc.DeniedError
	if errors.As(err, &denied) {
		status := http.StatusForbidden
		if denied.Reason == gatesvc.ReasonNotAuthenticated {
			status = http.StatusUnauthorized
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":  denied.Error(),
			"reason": string(denied.Reason),
		})
		return
	}
	writeError(w, http.StatusBadRequest, err)
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
