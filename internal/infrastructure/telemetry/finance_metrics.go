package telemetry

import (
	appfinance "github.com/fieldservice/backend/internal/application/finance"
	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/prometheus/client_golang/prometheus"
)

var reliabilityLevels = []finance.Reliability{
	finance.ReliabilityHigh,
	finance.ReliabilityMedium,
	finance.ReliabilityLow,
	finance.ReliabilityUnreliable,
}

// FinanceMetrics records ledger operations and the latest financial summary
type FinanceMetrics struct {
	operations *prometheus.CounterVec
	figures    *prometheus.GaugeVec
	margin     *prometheus.GaugeVec
	reliable   *prometheus.GaugeVec
	lastUpdate prometheus.Gauge
}

// NewFinanceMetrics creates and registers the finance metric set
func NewFinanceMetrics(r *Registry) *FinanceMetrics {
	m := &FinanceMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: r.namespace,
			Subsystem: "finance",
			Name:      "operations_total",
			Help:      "Ledger operations by name and result.",
		}, []string{"operation", "result"}),
		figures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: r.namespace,
			Subsystem: "finance",
			Name:      "summary_amount",
			Help:      "Monetary figures of the latest financial summary.",
		}, []string{"figure"}),
		margin: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: r.namespace,
			Subsystem: "finance",
			Name:      "summary_margin_percent",
			Help:      "Profit margins of the latest financial summary.",
		}, []string{"period"}),
		reliable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: r.namespace,
			Subsystem: "finance",
			Name:      "forecast_reliability",
			Help:      "1 for the reliability level of the latest revenue forecast, 0 for the others.",
		}, []string{"level"}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: r.namespace,
			Subsystem: "finance",
			Name:      "summary_timestamp_seconds",
			Help:      "Unix time of the latest financial summary.",
		}),
	}
	r.registry.MustRegister(m.operations, m.figures, m.margin, m.reliable, m.lastUpdate)
	return m
}

// ObserveOperation counts one finished ledger operation
func (m *FinanceMetrics) ObserveOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// ObserveSummary publishes the figures of a freshly computed summary
func (m *FinanceMetrics) ObserveSummary(s finance.FinancialSummary) {
	set := func(figure string, v float64) { m.figures.WithLabelValues(figure).Set(v) }
	set("balance", s.Balance.Float64())
	set("monthly_revenue", s.MonthlyRevenue.Float64())
	set("monthly_expenses", s.MonthlyExpenses.Float64())
	set("monthly_profit", s.MonthlyProfit.Float64())
	set("projected_monthly_revenue", s.ProjectedMonthlyRevenue.Float64())
	set("next_month_revenue", s.NextMonthRevenue.Float64())
	set("total_revenue", s.TotalRevenue.Float64())
	set("total_profit", s.TotalProfit.Float64())
	set("pending_payments", s.PendingPayments.Float64())
	set("forecast_revenue", s.ForecastRevenue.Float64())

	monthly, _ := s.MonthlyMargin.Float64()
	total, _ := s.TotalMargin.Float64()
	m.margin.WithLabelValues("month").Set(monthly)
	m.margin.WithLabelValues("lifetime").Set(total)

	for _, level := range reliabilityLevels {
		v := 0.0
		if s.ForecastReliability == level {
			v = 1
		}
		m.reliable.WithLabelValues(string(level)).Set(v)
	}
	if !s.LastUpdated.IsZero() {
		m.lastUpdate.Set(float64(s.LastUpdated.Unix()))
	}
}

var _ appfinance.Observer = (*FinanceMetrics)(nil)
