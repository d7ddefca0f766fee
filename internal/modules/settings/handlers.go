package settings

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides the operator-facing HTTP surface (§6) over runtime
// settings: inspecting and adjusting the distribution, AI-enhancement,
// migration, and fund-monitor knobs without a restart.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new settings handler.
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// HandleGetAll handles GET /api/v1/settings.
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to get all settings")
		http.Error(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.log.Error().Err(err).Msg("failed to encode settings response")
	}
}

// HandleUpdate handles PUT /api/v1/settings/{key}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Set(key, update.Value); err != nil {
		h.log.Error().
			Err(err).
			Str("key", key).
			Interface("value", update.Value).
			Msg("failed to update setting")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := map[string]interface{}{key: update.Value}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.log.Error().Err(err).Msg("failed to encode settings response")
	}
}
