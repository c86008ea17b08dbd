package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/omnifin/omni/backend/src/config"
	"github.com/omnifin/omni/backend/src/llm"
	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/services"
	"github.com/omnifin/omni/backend/src/utils"
)

type DashboardHandler struct {
	dashboardService services.DashboardService
	insightService   services.InsightService
}

func NewDashboardHandler(dashboardService services.DashboardService, insightService services.InsightService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		insightService:   insightService,
	}
}

func (h *DashboardHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	stats, err := h.dashboardService.GetStats(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to compute dashboard stats", "error", err)
		utils.SendJSONError(w, "Falha ao calcular estatísticas", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, stats, http.StatusOK)
}

type reportAnalysisResponse struct {
	Analysis string `json:"analysis"`
}

func (h *DashboardHandler) HandleGetReportAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	ctxLogger := logger.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), config.Cfg.LLMRequestTimeout)
	defer cancel()

	analysis, err := h.insightService.GetReportAnalysis(ctx, userID)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			utils.SendJSONError(w, "Nenhum provedor de IA configurado. Defina GEMINI_API_KEY.", http.StatusServiceUnavailable)
			return
		}
		ctxLogger.Error("Report analysis failed", "error", err)
		utils.SendJSONError(w, "Falha ao gerar análise", http.StatusBadGateway)
		return
	}
	utils.SendJSON(w, reportAnalysisResponse{Analysis: analysis}, http.StatusOK)
}
