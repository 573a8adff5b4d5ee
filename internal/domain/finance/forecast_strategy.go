package finance

import (
	"errors"
	"fmt"
	"math"
)

// ForecastMethod names the technique used to produce a forecast
type ForecastMethod string

const (
	ForecastMethodSimpleAverage         ForecastMethod = "SIMPLE_AVERAGE"
	ForecastMethodMovingAverage         ForecastMethod = "MOVING_AVERAGE"
	ForecastMethodExponentialSmoothing  ForecastMethod = "EXPONENTIAL_SMOOTHING"
	ForecastMethodWeightedMovingAverage ForecastMethod = "WEIGHTED_MOVING_AVERAGE"
	ForecastMethodLastValue             ForecastMethod = "LAST_VALUE"
	ForecastMethodNone                  ForecastMethod = "NONE"
)

// Reliability grades how much history backed a forecast
type Reliability string

const (
	ReliabilityHigh       Reliability = "HIGH"
	ReliabilityMedium     Reliability = "MEDIUM"
	ReliabilityLow        Reliability = "LOW"
	ReliabilityUnreliable Reliability = "UNRELIABLE"
)

// Strategy selection parameters
const (
	DefaultSmoothingAlpha    = 0.3
	VolatilityThreshold      = 0.25
	MinPointsForTrend        = 3
	DefaultMovingAverageSpan = 3
)

// ErrEmptySeries is returned when a forecast is requested over no data
var ErrEmptySeries = errors.New("forecast requires at least one data point")

// ForecastStrategy predicts the next value of a series
type ForecastStrategy interface {
	Name() string
	Description() string
	Method() ForecastMethod
	Forecast(data []float64) (float64, error)
}

// strategyInfo names a forecast strategy
type strategyInfo struct {
	name        string
	description string
}

// Name returns the strategy name
func (i strategyInfo) Name() string { return i.name }

// Description returns a human-readable description
func (i strategyInfo) Description() string { return i.description }

// MovingAverage returns the mean of the last window points, or of every
// point when there are fewer than window.
func MovingAverage(data []float64, window int) (float64, error) {
	if len(data) == 0 {
		return 0, ErrEmptySeries
	}
	if window < 1 {
		return 0, fmt.Errorf("moving average window must be positive, got %d", window)
	}
	if window > len(data) {
		window = len(data)
	}
	sum := 0.0
	for _, v := range data[len(data)-window:] {
		sum += v
	}
	return sum / float64(window), nil
}

// ExponentialSmoothing applies S_t = alpha*x_t + (1-alpha)*S_(t-1) seeded
// with the first observation and returns the final smoothed value.
func ExponentialSmoothing(data []float64, alpha float64) (float64, error) {
	if len(data) == 0 {
		return 0, ErrEmptySeries
	}
	if alpha <= 0 || alpha > 1 {
		return 0, fmt.Errorf("smoothing factor must be in (0, 1], got %v", alpha)
	}
	s := data[0]
	for _, x := range data[1:] {
		s = alpha*x + (1-alpha)*s
	}
	return s, nil
}

// WeightedMovingAverage returns the dot product of the most recent points
// with weights. Without weights every point is used with the linear ramp
// w_i = (i+1)/sum(1..n) so the newest point weighs the most.
func WeightedMovingAverage(data []float64, weights []float64) (float64, error) {
	if len(data) == 0 {
		return 0, ErrEmptySeries
	}
	if len(weights) == 0 {
		weights = linearWeights(len(data))
	}
	if len(weights) > len(data) {
		return 0, fmt.Errorf("%d weights given for %d data points", len(weights), len(data))
	}
	tail := data[len(data)-len(weights):]
	sum := 0.0
	for i, w := range weights {
		sum += tail[i] * w
	}
	return sum, nil
}

func linearWeights(n int) []float64 {
	total := float64(n*(n+1)) / 2
	weights := make([]float64, n)
	for i := range n {
		weights[i] = float64(i+1) / total
	}
	return weights
}

// Mean returns the arithmetic mean of data, 0 when empty
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// CoefficientOfVariation returns the population standard deviation divided by
// the mean. A zero mean gives 0 for a flat series and +Inf otherwise.
func CoefficientOfVariation(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := Mean(data)
	variance := 0.0
	for _, v := range data {
		variance += (v - mean) * (v - mean)
	}
	stddev := math.Sqrt(variance / float64(len(data)))
	if mean == 0 {
		if stddev == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return stddev / math.Abs(mean)
}

// ReliabilityFor grades a forecast by how many points it was built on
func ReliabilityFor(points int) Reliability {
	switch {
	case points >= 12:
		return ReliabilityHigh
	case points >= 6:
		return ReliabilityMedium
	case points > 0:
		return ReliabilityLow
	default:
		return ReliabilityUnreliable
	}
}

// SimpleAverageStrategy forecasts the plain mean of the series
type SimpleAverageStrategy struct {
	strategyInfo
}

// NewSimpleAverageStrategy creates a SimpleAverageStrategy
func NewSimpleAverageStrategy() *SimpleAverageStrategy {
	return &SimpleAverageStrategy{
		strategyInfo: strategyInfo{name: "simple_average",
			description: "Mean of every observation, used for short series"},
	}
}

// Method returns the forecast method
func (s *SimpleAverageStrategy) Method() ForecastMethod { return ForecastMethodSimpleAverage }

// Forecast returns the mean of data
func (s *SimpleAverageStrategy) Forecast(data []float64) (float64, error) {
	return MovingAverage(data, max(len(data), 1))
}

// MovingAverageStrategy forecasts the mean of the last Window points
type MovingAverageStrategy struct {
	strategyInfo
	Window int
}

// NewMovingAverageStrategy creates a MovingAverageStrategy
func NewMovingAverageStrategy(window int) *MovingAverageStrategy {
	return &MovingAverageStrategy{
		strategyInfo: strategyInfo{name: "moving_average",
			description: "Mean of the most recent observations"},
		Window: window,
	}
}

// Method returns the forecast method
func (s *MovingAverageStrategy) Method() ForecastMethod { return ForecastMethodMovingAverage }

// Forecast returns the moving average of data
func (s *MovingAverageStrategy) Forecast(data []float64) (float64, error) {
	return MovingAverage(data, s.Window)
}

// ExponentialSmoothingStrategy forecasts with simple exponential smoothing
type ExponentialSmoothingStrategy struct {
	strategyInfo
	Alpha float64
}

// NewExponentialSmoothingStrategy creates an ExponentialSmoothingStrategy
func NewExponentialSmoothingStrategy(alpha float64) *ExponentialSmoothingStrategy {
	return &ExponentialSmoothingStrategy{
		strategyInfo: strategyInfo{name: "exponential_smoothing",
			description: "Exponentially decaying weights, robust to volatile series"},
		Alpha: alpha,
	}
}

// Method returns the forecast method
func (s *ExponentialSmoothingStrategy) Method() ForecastMethod {
	return ForecastMethodExponentialSmoothing
}

// Forecast returns the smoothed value of data
func (s *ExponentialSmoothingStrategy) Forecast(data []float64) (float64, error) {
	return ExponentialSmoothing(data, s.Alpha)
}

// WeightedMovingAverageStrategy forecasts with a linearly weighted average
type WeightedMovingAverageStrategy struct {
	strategyInfo
	Weights []float64
}

// NewWeightedMovingAverageStrategy creates a WeightedMovingAverageStrategy.
// Nil weights select the linear ramp.
func NewWeightedMovingAverageStrategy(weights []float64) *WeightedMovingAverageStrategy {
	return &WeightedMovingAverageStrategy{
		strategyInfo: strategyInfo{name: "weighted_moving_average",
			description: "Recent observations weigh more, suited to stable series"},
		Weights: weights,
	}
}

// Method returns the forecast method
func (s *WeightedMovingAverageStrategy) Method() ForecastMethod {
	return ForecastMethodWeightedMovingAverage
}

// Forecast returns the weighted average of data
func (s *WeightedMovingAverageStrategy) Forecast(data []float64) (float64, error) {
	return WeightedMovingAverage(data, s.Weights)
}

// SelectStrategy picks the strategy for a series: short series use the plain
// average, volatile ones exponential smoothing, stable ones the weighted
// moving average.
func SelectStrategy(data []float64) ForecastStrategy {
	switch {
	case len(data) < MinPointsForTrend:
		return NewSimpleAverageStrategy()
	case CoefficientOfVariation(data) > VolatilityThreshold:
		return NewExponentialSmoothingStrategy(DefaultSmoothingAlpha)
	default:
		return NewWeightedMovingAverageStrategy(nil)
	}
}

// SeriesForecast is the outcome of forecasting a numeric series
type SeriesForecast struct {
	Value       float64        `json:"value"`
	Method      ForecastMethod `json:"method"`
	Reliability Reliability    `json:"reliability"`
	DataPoints  int            `json:"data_points"`
	Volatility  float64        `json:"volatility"`
}

// ForecastSeries selects a strategy and forecasts the next value of data.
// It never fails: an empty series forecasts zero and any computation failure
// falls back to the last observed value, both marked unreliable.
func ForecastSeries(data []float64) (result SeriesForecast) {
	if len(data) == 0 {
		return SeriesForecast{Method: ForecastMethodNone, Reliability: ReliabilityUnreliable}
	}

	fallback := SeriesForecast{
		Value:       data[len(data)-1],
		Method:      ForecastMethodLastValue,
		Reliability: ReliabilityUnreliable,
		DataPoints:  len(data),
	}
	defer func() {
		if r := recover(); r != nil {
			result = fallback
		}
	}()

	s := SelectStrategy(data)
	value, err := s.Forecast(data)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return fallback
	}

	volatility := CoefficientOfVariation(data)
	if math.IsInf(volatility, 0) {
		volatility = 0
	}
	return SeriesForecast{
		Value:       value,
		Method:      s.Method(),
		Reliability: ReliabilityFor(len(data)),
		DataPoints:  len(data),
		Volatility:  volatility,
	}
}

// ForecastStrategies lists every forecast strategy with default parameters
func ForecastStrategies() []ForecastStrategy {
	return []ForecastStrategy{
		NewSimpleAverageStrategy(),
		NewMovingAverageStrategy(DefaultMovingAverageSpan),
		NewExponentialSmoothingStrategy(DefaultSmoothingAlpha),
		NewWeightedMovingAverageStrategy(nil),
	}
}
