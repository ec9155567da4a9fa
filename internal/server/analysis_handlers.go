package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkarlis/rebalancer/internal/config"
	"github.com/mkarlis/rebalancer/internal/domain"
	"github.com/mkarlis/rebalancer/internal/modules/universe"
	"github.com/mkarlis/rebalancer/internal/services"
)

// AnalysisHandlers serves the analysis and chart endpoints.
type AnalysisHandlers struct {
	cfg      *config.Config
	analysis *services.AnalysisService
	history  *universe.HistoryDB
	log      zerolog.Logger
}

// NewAnalysisHandlers creates the analysis endpoint handlers.
func NewAnalysisHandlers(cfg *config.Config, analysis *services.AnalysisService, history *universe.HistoryDB, log zerolog.Logger) *AnalysisHandlers {
	return &AnalysisHandlers{
		cfg:      cfg,
		analysis: analysis,
		history:  history,
		log:      log.With().Str("component", "analysis_handlers").Logger(),
	}
}

// scopeFrom resolves the scope query parameter, falling back to the
// configured default.
func (h *AnalysisHandlers) scopeFrom(r *http.Request) (domain.Scope, error) {
	raw := r.URL.Query().Get("scope")
	if raw == "" {
		return h.cfg.DefaultScope, nil
	}
	return domain.ParseScope(raw)
}

// HandleListAssets returns the tracked asset set with market classification
// and observation summaries.
func (h *AnalysisHandlers) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.history.ListAssets()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list assets")
		writeError(h.log, w, http.StatusInternalServerError, "failed to list assets")
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	})
}

// HandleRun forces a fresh analysis for the requested scope, bypassing the
// cache, and returns the new report tagged with a run ID.
func (h *AnalysisHandlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.New().String()
	log := h.log.With().Str("run_id", runID).Logger()
	log.Info().Str("scope", string(scope)).Msg("Running analysis")

	report, err := h.analysis.Compute(scope)
	if err != nil {
		log.Error().Err(err).Msg("Analysis run failed")
		writeError(h.log, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"report": presentReport(report),
	})
}

// HandleReport returns the (possibly cached) analysis report.
func (h *AnalysisHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.analysis.GetReport(scope)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build report")
		writeError(h.log, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, presentReport(report))
}

// HandleCorrelation returns only the correlation analytics of the report.
func (h *AnalysisHandlers) HandleCorrelation(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.analysis.GetReport(scope)
	if err != nil {
		writeError(h.log, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"correlation":          presentCorrelation(report.Correlation),
		"rolling_correlations": presentRolling(report.Rolling),
	})
}

// HandleContribution returns only the risk-contribution analytics.
func (h *AnalysisHandlers) HandleContribution(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.analysis.GetReport(scope)
	if err != nil {
		writeError(h.log, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, presentContribution(report.Contribution))
}

// HandlePerformanceChart renders the cumulative performance chart.
func (h *AnalysisHandlers) HandlePerformanceChart(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, h.analysis.PerformanceChart)
}

// HandleDrawdownChart renders the drawdown chart.
func (h *AnalysisHandlers) HandleDrawdownChart(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, h.analysis.DrawdownChart)
}

func (h *AnalysisHandlers) serveChart(w http.ResponseWriter, r *http.Request, render func(domain.Scope) ([]byte, error)) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := render(scope)
	if err != nil {
		h.log.Error().Err(err).Msg("Chart rendering failed")
		writeError(h.log, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart response")
	}
}
