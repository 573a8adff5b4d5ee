package handler

import (
	financeapp "github.com/fieldservice/backend/internal/application/finance"
	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// FinanceHandler handles summary, balance and forecast endpoints
type FinanceHandler struct {
	BaseHandler
	summary  *financeapp.FinancialSummaryService
	cashFlow *financeapp.CashFlowService
}

// NewFinanceHandler creates a new FinanceHandler
func NewFinanceHandler(summary *financeapp.FinancialSummaryService, cashFlow *financeapp.CashFlowService) *FinanceHandler {
	return &FinanceHandler{summary: summary, cashFlow: cashFlow}
}

// GetSummary returns the last stored financial summary
// GET /finance/summary
func (h *FinanceHandler) GetSummary(c *gin.Context) {
	summary, err := h.summary.Current(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Recompute recomputes and stores the financial summary
// POST /finance/summary/recompute
func (h *FinanceHandler) Recompute(c *gin.Context) {
	summary, err := h.summary.Summarize(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// AdjustBalance moves the running balance
// POST /finance/balance/adjust
func (h *FinanceHandler) AdjustBalance(c *gin.Context) {
	var req dto.AdjustBalanceRequest
	if !bindJSON(c, &req) {
		return
	}
	summary, err := h.summary.AdjustBalance(c.Request.Context(), toMoney(req.Amount), finance.BalanceDirection(req.Direction))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// CashFlow projects monthly cash flow
// GET /finance/cash-flow?months=N
func (h *FinanceHandler) CashFlow(c *gin.Context) {
	var q dto.MonthsQuery
	if !bindQuery(c, &q) {
		return
	}
	forecast, err := h.cashFlow.Forecast(c.Request.Context(), q.Months)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, forecast)
}

// Forecast forecasts the next value of a numeric series
// POST /finance/forecast
func (h *FinanceHandler) Forecast(c *gin.Context) {
	var req dto.ForecastRequest
	if !bindJSON(c, &req) {
		return
	}
	h.Success(c, h.cashFlow.ProjectSeries(c.Request.Context(), req.Data))
}

// RevenueTrend returns monthly revenue history with a forecast
// GET /finance/revenue-trend?months=N
func (h *FinanceHandler) RevenueTrend(c *gin.Context) {
	var q dto.MonthsQuery
	if !bindQuery(c, &q) {
		return
	}
	trend, err := h.cashFlow.RevenueTrend(c.Request.Context(), q.Months)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, trend)
}
