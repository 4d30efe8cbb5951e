package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/auth"
	"github.com/iurnickita/giftcards/internal/gzip"
	"github.com/iurnickita/giftcards/internal/handler/config"
	"github.com/iurnickita/giftcards/internal/lifecycle"
	"github.com/iurnickita/giftcards/internal/logger"
	"github.com/iurnickita/giftcards/internal/model"
	"github.com/iurnickita/giftcards/internal/service"
)

const shutdownTimeout = 5 * time.Second

// Serve слушает до отмены ctx.
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, gatherer prometheus.Gatherer, zaplog *zap.Logger) error {
	h := newHandler(auth, service, gatherer, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		zaplog.Info("http server started", zap.String("addr", cfg.ServerAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type handler struct {
	auth     auth.Auth
	service  service.Service
	gatherer prometheus.Gatherer
	zaplog   *zap.Logger
	now      func() time.Time
}

func newHandler(auth auth.Auth, service service.Service, gatherer prometheus.Gatherer, zaplog *zap.Logger) *handler {
	return &handler{
		auth:     auth,
		service:  service,
		gatherer: gatherer,
		zaplog:   zaplog,
		now:      time.Now,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/unlock", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Unlock, h.zaplog)))
	mux.HandleFunc("GET /api/cards", h.secured(h.GetCards))
	mux.HandleFunc("POST /api/cards", h.secured(h.PostCards))
	mux.HandleFunc("POST /api/cards/extract", h.secured(h.PostExtract))
	mux.HandleFunc("GET /api/cards/{id}", h.secured(h.GetCard))
	mux.HandleFunc("DELETE /api/cards/{id}", h.secured(h.DeleteCard))
	mux.HandleFunc("PUT /api/cards/{id}/balance", h.secured(h.PutBalance))
	mux.HandleFunc("POST /api/cards/{id}/refresh", h.secured(h.PostRefresh))
	mux.HandleFunc("GET /api/export", h.secured(h.GetExport))
	mux.HandleFunc("POST /api/import", h.secured(h.PostImport))
	mux.HandleFunc("GET /api/backup", h.secured(h.GetBackup))
	mux.HandleFunc("PUT /api/backup", h.secured(h.PutBackup))
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

func (h *handler) secured(hf http.HandlerFunc) http.HandlerFunc {
	return gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(hf), h.zaplog))
}

type CardJSON struct {
	ID          string    `json:"id"`
	CardNumber  string    `json:"cardNumber"`
	PIN         string    `json:"pin"`
	Balance     float64   `json:"balance"`
	ExpiryDate  string    `json:"expiryDate,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
	Status      string    `json:"status"`
	LuhnValid   bool      `json:"luhnValid"`
}

func (h *handler) cardOutput(card model.Card, reveal bool) CardJSON {
	pin := card.Data.MaskedPIN()
	if reveal {
		pin = card.Data.PIN
	}
	return CardJSON{
		ID:          card.ID,
		CardNumber:  card.Data.Number,
		PIN:         pin,
		Balance:     card.Data.Balance.InexactFloat64(),
		ExpiryDate:  card.Data.ExpiryDate,
		LastUpdated: card.Data.LastUpdated,
		Status:      string(lifecycle.Classify(card, h.now())),
		LuhnValid:   card.Data.LuhnValid(),
	}
}

func (h *handler) cardsOutput(cards []model.Card, reveal bool) []CardJSON {
	out := make([]CardJSON, 0, len(cards))
	for _, card := range cards {
		out = append(out, h.cardOutput(card, reveal))
	}
	return out
}

type GetCardsJSONResponse struct {
	Active   []CardJSON `json:"active"`
	Archived []CardJSON `json:"archived"`
}

func (h *handler) GetCards(w http.ResponseWriter, r *http.Request) {
	reveal := revealRequested(r)
	listing := h.service.ListCards(r.Context(), h.now())

	h.writeJSON(w, http.StatusOK, GetCardsJSONResponse{
		Active:   h.cardsOutput(listing.Active, reveal),
		Archived: h.cardsOutput(listing.Archived, reveal),
	})
}

type PostCardJSONRequest struct {
	CardNumber string          `json:"cardNumber"`
	PIN        string          `json:"pin"`
	Balance    decimal.Decimal `json:"balance"`
}

type AddCardsJSONResponse struct {
	Added      []CardJSON `json:"added"`
	Duplicates []string   `json:"duplicates"`
	Rejected   int        `json:"rejected"`
}

// PostCards принимает одну карту или массив карт.
func (h *handler) PostCards(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var requests []PostCardJSONRequest
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		var single PostCardJSONRequest
		err = json.Unmarshal(trimmed, &single)
		requests = append(requests, single)
	} else {
		err = json.Unmarshal(body, &requests)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cards := make([]model.NewCard, 0, len(requests))
	for _, request := range requests {
		cards = append(cards, model.NewCard{
			Number:  request.CardNumber,
			PIN:     request.PIN,
			Balance: request.Balance,
		})
	}

	result, err := h.service.AddCards(r.Context(), cards)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeAddResult(w, r, result)
}

type TextJSONRequest struct {
	Text string `json:"text"`
}

func (h *handler) PostExtract(w http.ResponseWriter, r *http.Request) {
	var request TextJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.ExtractCards(r.Context(), request.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeAddResult(w, r, result)
}

func (h *handler) writeAddResult(w http.ResponseWriter, r *http.Request, result service.AddResult) {
	status := http.StatusOK
	if len(result.Added) > 0 {
		status = http.StatusCreated
	}
	duplicates := result.Duplicates
	if duplicates == nil {
		duplicates = []string{}
	}
	h.writeJSON(w, status, AddCardsJSONResponse{
		Added:      h.cardsOutput(result.Added, revealRequested(r)),
		Duplicates: duplicates,
		Rejected:   result.Rejected,
	})
}

func (h *handler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.GetCard(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cardOutput(card, revealRequested(r)))
}

func (h *handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCard(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type PutBalanceJSONRequest struct {
	Balance    decimal.Decimal `json:"balance"`
	ExpiryDate string          `json:"expiryDate"`
}

func (h *handler) PutBalance(w http.ResponseWriter, r *http.Request) {
	var request PutBalanceJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	card, err := h.service.UpdateBalance(r.Context(), r.PathValue("id"), request.Balance, request.ExpiryDate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cardOutput(card, revealRequested(r)))
}

func (h *handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	var request TextJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	card, err := h.service.RefreshBalance(r.Context(), r.PathValue("id"), request.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cardOutput(card, revealRequested(r)))
}

func (h *handler) GetExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Export(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="giftcards.json"`)
	w.Write(data)
}

type PostImportJSONResponse struct {
	Imported int `json:"imported"`
}

func (h *handler) PostImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.service.Import(r.Context(), data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PostImportJSONResponse{Imported: n})
}

type BackupJSON struct {
	Target  string     `json:"target,omitempty"`
	State   string     `json:"state"`
	Message string     `json:"message,omitempty"`
	SavedAt *time.Time `json:"savedAt,omitempty"`
}

func (h *handler) GetBackup(w http.ResponseWriter, r *http.Request) {
	h.writeBackupStatus(w)
}

type PutBackupJSONRequest struct {
	Path string `json:"path"`
}

// PutBackup выбирает файл резервной копии или повторно разрешает запись в него.
func (h *handler) PutBackup(w http.ResponseWriter, r *http.Request) {
	var request PutBackupJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SetBackupTarget(r.Context(), request.Path); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBackupStatus(w)
}

func (h *handler) writeBackupStatus(w http.ResponseWriter) {
	status := h.service.BackupStatus()
	out := BackupJSON{
		Target:  status.Target,
		State:   string(status.State),
		Message: status.Message,
	}
	if !status.SavedAt.IsZero() {
		out.SavedAt = &status.SavedAt
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(responseJSON)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientData),
		errors.Is(err, service.ErrInvalidCard),
		errors.Is(err, service.ErrMalformedImport):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrCardNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrNothingFound):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrPermissionRequired):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrExtractionUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.zaplog.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func revealRequested(r *http.Request) bool {
	return r.URL.Query().Get("reveal") == "true"
}
