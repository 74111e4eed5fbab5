// Package httpapi — JSON-адаптер экрана корзины поверх cart.Store.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/Leonardofps/gomarketplace/internal/cart"
	"github.com/Leonardofps/gomarketplace/internal/domain"
)

const (
	maxBodyBytes = 1 << 20
	// HeaderCartLoaded сообщает клиенту, завершилась ли начальная загрузка снимка.
	HeaderCartLoaded = "X-Cart-Loaded"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler обслуживает /v1/cart.
type Handler struct {
	provider *cart.Provider
	format   cart.FormatFunc
	logger   *log.Entry
}

// NewHandler создаёт handler. provider может быть пустым: тогда каждый запрос получает 503.
func NewHandler(provider *cart.Provider, format cart.FormatFunc, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{
		provider: provider,
		format:   format,
		logger:   logger,
	}
}

// Register добавляет маршруты в mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/cart", h.getCart)
	mux.HandleFunc("POST /v1/cart/items", h.addItem)
	mux.HandleFunc("POST /v1/cart/items/{id}/increment", h.increment)
	mux.HandleFunc("POST /v1/cart/items/{id}/decrement", h.decrement)
}

func (h *Handler) getCart(w http.ResponseWriter, _ *http.Request) {
	store, err := h.provider.Cart()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeView(w, store)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	store, err := h.provider.Cart()
	if err != nil {
		h.writeError(w, err)
		return
	}

	var product domain.Product
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&product); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	if err := store.AddToCart(product); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeView(w, store)
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	h.mutateByID(w, r, (*cart.Store).Increment)
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	h.mutateByID(w, r, (*cart.Store).Decrement)
}

func (h *Handler) mutateByID(w http.ResponseWriter, r *http.Request, op func(*cart.Store, string) error) {
	store, err := h.provider.Cart()
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := op(store, r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeView(w, store)
}

func (h *Handler) writeView(w http.ResponseWriter, store *cart.Store) {
	view, err := store.View(h.format)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set(HeaderCartLoaded, strconv.FormatBool(store.Loaded()))
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrCartNotProvided):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidProduct):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("cart request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
