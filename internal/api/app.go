package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/dialbook/internal/phonebook"
)

const maxRequestBodySize = 64 << 10 // 64KB

// PhoneModel is the wire form of a saved phone number.
type PhoneModel struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Display   string `json:"display"`
	Timestamp int64  `json:"timestamp"`
}

// CheckResult describes how a raw input would be stored.
type CheckResult struct {
	Valid   bool   `json:"valid"`
	E164    string `json:"e164"`
	Display string `json:"display"`
}

type numberRequest struct {
	Number string `json:"number"`
}

type draftBody struct {
	Draft string `json:"draft"`
	Valid bool   `json:"valid"`
}

type AppDeps struct {
	Book     *phonebook.Store
	Token    string              // optional; if empty, phone routes are unauthenticated
	Metrics  *Metrics            // optional
	Gatherer prometheus.Gatherer // optional; if nil, /metrics is not served
}

// NewAppHandler returns the JSON API presentation code uses to drive the
// phone book.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/health", handleHealth)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Get("/phones", handleListPhones(deps))
		r.Post("/phones", handleSavePhone(deps))
		r.Delete("/phones", handleClearPhones(deps))
		r.Post("/phones/check", handleCheckPhone(deps))
		r.Delete("/phones/{id}", handleDeletePhone(deps))
		r.Get("/draft", handleGetDraft(deps))
		r.Put("/draft", handlePutDraft(deps))
		r.Post("/draft/save", handleSaveDraft(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func toModel(book *phonebook.Store, p phonebook.SavedPhone) PhoneModel {
	return PhoneModel{
		ID:        p.ID,
		Number:    p.Number,
		Display:   book.Plan().FormatForDisplay(p.Number),
		Timestamp: p.Timestamp,
	}
}

func toModels(book *phonebook.Store, phones []phonebook.SavedPhone) []PhoneModel {
	out := make([]PhoneModel, len(phones))
	for i, p := range phones {
		out[i] = toModel(book, p)
	}
	return out
}

func handleListPhones(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, toModels(deps.Book, deps.Book.List()))
	}
}

func handleSavePhone(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req numberRequest
		if !decodeBody(w, r, &req) {
			return
		}

		rec, err := deps.Book.Save(req.Number)
		deps.Metrics.ObserveSave(err)
		if err != nil {
			writeSaveError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toModel(deps.Book, rec))
	}
}

func handleCheckPhone(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req numberRequest
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, http.StatusOK, Check(deps.Book, req.Number))
	}
}

// Check reports whether raw would be accepted by book and how it would be stored.
func Check(book *phonebook.Store, raw string) CheckResult {
	plan := book.Plan()
	e164 := plan.FormatToE164(raw)
	return CheckResult{
		Valid:   plan.IsValid(raw),
		E164:    e164,
		Display: plan.FormatForDisplay(e164),
	}
}

func handleDeletePhone(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Book.Delete(id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete phone number: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleClearPhones(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Book.Clear(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to clear phone numbers: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func handleGetDraft(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft := deps.Book.Draft()
		writeJSON(w, http.StatusOK, draftBody{Draft: draft, Valid: deps.Book.Plan().IsValid(draft)})
	}
}

func handlePutDraft(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req draftBody
		if !decodeBody(w, r, &req) {
			return
		}
		deps.Book.SetDraft(req.Draft)
		writeJSON(w, http.StatusOK, draftBody{Draft: req.Draft, Valid: deps.Book.Plan().IsValid(req.Draft)})
	}
}

func handleSaveDraft(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Book.SaveDraft()
		deps.Metrics.ObserveSave(err)
		if err != nil {
			writeSaveError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toModel(deps.Book, rec))
	}
}

func writeSaveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, phonebook.ErrEmptyInput):
		httpError(w, http.StatusBadRequest, "empty_input", "please enter a phone number")
	case errors.Is(err, phonebook.ErrInvalidFormat):
		httpError(w, http.StatusUnprocessableEntity, "invalid_format", "please enter a valid phone number")
	case errors.Is(err, phonebook.ErrDuplicateNumber):
		httpError(w, http.StatusConflict, "duplicate_number", "this phone number is already saved")
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "failed to save phone number: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
