package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/arbitrage-platform/internal/ai"
	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/domain"
	"github.com/aristath/arbitrage-platform/internal/ingestion"
	"github.com/aristath/arbitrage-platform/internal/migration"
)

// handleHealth is the liveness probe: it never depends on downstream
// state, only that the process is alive and serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "arbitrage-platform",
	})
}

// handleStatus is the readiness probe: it reports the infrastructure
// coordinator's aggregated health, including per-service status and
// the process resource report.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.infraCoord == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "unknown"})
		return
	}

	snapshot := s.infraCoord.CheckHealth(r.Context())
	status := http.StatusOK
	if snapshot.Overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, snapshot)
}

type distributeOpportunityRequest struct {
	Opportunity domain.ArbitrageOpportunity `json:"opportunity"`
	Strategy    domain.DistributionStrategy `json:"strategy"`
	DetectedAt  time.Time                   `json:"detected_at"`
	ExpiresAt   time.Time                   `json:"expires_at"`
}

func (s *Server) handleDistributeOpportunity(w http.ResponseWriter, r *http.Request) {
	var req distributeOpportunityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.New(apperr.ValidationError, "server.handleDistributeOpportunity", err))
		return
	}

	result, err := s.distribution.DistributeOpportunity(r.Context(), req.Opportunity, req.Strategy, req.DetectedAt, req.ExpiresAt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type createRolloutRequest struct {
	Config migration.RolloutConfig   `json:"config"`
	Safety migration.SafetyThreshold `json:"safety"`
}

func (s *Server) handleCreateRollout(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, apperr.New(apperr.ValidationError, "server.handleCreateRollout", migrationIDRequiredErr{}))
		return
	}

	var req createRolloutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.New(apperr.ValidationError, "server.handleCreateRollout", err))
		return
	}

	if err := s.migration.CreateRollout(r.Context(), id, req.Config, req.Safety); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type migrationIDRequiredErr struct{}

func (migrationIDRequiredErr) Error() string { return "id query parameter is required" }

func (s *Server) handleGetRollout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rollout, ok := s.migration.Rollout(id)
	if !ok {
		s.writeError(w, apperr.New(apperr.NotFound, "server.handleGetRollout", migrationIDRequiredErr{}))
		return
	}
	s.writeJSON(w, http.StatusOK, rollout)
}

func (s *Server) handleStartRollout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.migration.StartRollout(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleProgressRollout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.migration.ProgressRollout(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "progressed"})
}

type rollbackRolloutRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRollbackRollout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req rollbackRolloutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.migration.RollbackMigration(r.Context(), id, req.Reason); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "rolled_back"})
}

func (s *Server) handleUpdateRolloutMetrics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var metrics migration.Metrics
	if err := json.NewDecoder(r.Body).Decode(&metrics); err != nil {
		s.writeError(w, apperr.New(apperr.ValidationError, "server.handleUpdateRolloutMetrics", err))
		return
	}

	if err := s.migration.UpdateMetrics(r.Context(), id, metrics); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleGetFundSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	venue := chi.URLParam(r, "venue")

	snapshot, err := s.fundMonitor.GetSnapshot(r.Context(), userID, venue)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleIngestionMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ingestion.GetMetrics())
}

type ingestionFlushRequest struct {
	Stream ingestion.StreamName `json:"stream"`
}

func (s *Server) handleIngestionFlush(w http.ResponseWriter, r *http.Request) {
	var req ingestionFlushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stream == "" {
		if err := s.ingestion.FlushAll(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "flushed_all"})
		return
	}

	if err := s.ingestion.Flush(r.Context(), req.Stream); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "flushed", "stream": string(req.Stream)})
}

type enhanceOpportunitiesRequest struct {
	UserID        string                        `json:"user_id"`
	Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
}

func (s *Server) handleEnhanceOpportunities(w http.ResponseWriter, r *http.Request) {
	var req enhanceOpportunitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.New(apperr.ValidationError, "server.handleEnhanceOpportunities", err))
		return
	}

	enhanced, err := s.enhancer.EnhanceForUser(r.Context(), req.UserID, req.Opportunities)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, enhanced)
}

// handleRecordInteraction feeds a user's reaction to a distributed
// opportunity into the personalization engine and persists it for
// later history lookups, both keyed by the same record.
func (s *Server) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	var interaction ai.UserInteraction
	if err := json.NewDecoder(r.Body).Decode(&interaction); err != nil {
		s.writeError(w, apperr.New(apperr.ValidationError, "server.handleRecordInteraction", err))
		return
	}
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = time.Now()
	}

	if s.aiCoordinator != nil {
		if err := s.aiCoordinator.RecordInteraction(r.Context(), interaction); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if s.aiInteractionRepo != nil {
		if err := s.aiInteractionRepo.Record(r.Context(), interaction); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// handleListInteractions returns a user's recorded interaction history.
func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := 50
	if s.aiInteractionRepo == nil {
		s.writeJSON(w, http.StatusOK, []ai.UserInteraction{})
		return
	}
	interactions, err := s.aiInteractionRepo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, interactions)
}

// handleWebSocket upgrades the connection and registers it with the
// notification hub under chatID, so the distribution engine can push
// opportunity notifications as they are delivered.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "notifications unavailable", http.StatusServiceUnavailable)
		return
	}

	chatID := chi.URLParam(r, "chatID")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.hub.Register(chatID, conn)
	go func() {
		defer s.hub.Unregister(chatID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleRestartService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.infraCoord.RestartService(r.Context(), name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "restarted", "service": name})
}
