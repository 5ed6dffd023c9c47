// Package buffer implements the smart metrics buffer used by the realtime
// stream to paper over metrics-store polling gaps: it predicts the next
// sample from recent history when no fresh sample has arrived yet, and
// retroactively corrects earlier predictions once a real value returns.
package buffer

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultWindowSize          = 10
	defaultMaxPredictionStreak = 6
	smoothingAlpha             = 0.3
)

// MetricType controls range clamping: Percentage values are held in [0, max],
// Absolute values are only floored at zero.
type MetricType string

const (
	MetricTypePercentage MetricType = "percentage"
	MetricTypeAbsolute   MetricType = "absolute"
)

type sample struct {
	value     float64
	timestamp time.Time
	predicted bool
	confidence float64
}

// Buffer is a fixed-size sliding window of recent samples for one metric
// series, with forward-interpolation prediction and confidence-weighted
// retroactive correction.
type Buffer struct {
	name                string
	metricType          MetricType
	maxValue            float64
	maxPredictionStreak int
	windowSize          int

	samples         []sample
	predictionStreak int

	log *logrus.Logger
}

type Option func(*Buffer)

func WithMaxValue(v float64) Option              { return func(b *Buffer) { b.maxValue = v } }
func WithWindowSize(n int) Option                { return func(b *Buffer) { b.windowSize = n } }
func WithMaxPredictionStreak(n int) Option       { return func(b *Buffer) { b.maxPredictionStreak = n } }
func WithLogger(log *logrus.Logger) Option       { return func(b *Buffer) { b.log = log } }

// New builds a Buffer for metricName of the given type, defaulting to a
// 10-sample window (50s of 5s-spaced history) and a 6-tick prediction cap.
func New(metricName string, metricType MetricType, opts ...Option) *Buffer {
	b := &Buffer{
		name:                metricName,
		metricType:          metricType,
		maxValue:            100.0,
		maxPredictionStreak: defaultMaxPredictionStreak,
		windowSize:          defaultWindowSize,
		log:                 logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Buffer) clamp(v float64) float64 {
	if b.metricType == MetricTypePercentage {
		return math.Min(b.maxValue, math.Max(0.0, v))
	}
	return math.Max(0.0, v)
}

// AddValue appends a new sample, actual or predicted, defaulting the
// timestamp to now. An actual value arriving after a run of predictions
// triggers retroactive correction of the predictions it followed.
func (b *Buffer) AddValue(value float64, predicted bool, timestamp time.Time) {
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	value = b.clamp(value)

	var confidence float64
	if predicted {
		b.predictionStreak++
		confidence = math.Max(0.2, 1.0-float64(b.predictionStreak)*0.15)
	} else {
		b.predictionStreak = 0
		confidence = 1.0
	}

	b.samples = append(b.samples, sample{value: value, timestamp: timestamp, predicted: predicted, confidence: confidence})
	if len(b.samples) > b.windowSize {
		b.samples = b.samples[len(b.samples)-b.windowSize:]
	}

	if !predicted {
		b.correctPreviousPredictions(value)
	}
}

// PredictNext returns the next predicted value, or false if the buffer is
// empty.
func (b *Buffer) PredictNext() (float64, bool) {
	if len(b.samples) == 0 {
		b.log.WithField("metric", b.name).Warn("no values in buffer for prediction")
		return 0, false
	}

	if b.predictionStreak >= b.maxPredictionStreak {
		return b.exponentialDecayFallback(), true
	}

	if len(b.samples) == 1 {
		return b.samples[len(b.samples)-1].value, true
	}

	slope := b.weightedSlope()
	base := b.smoothedBaseValue()
	prediction := base + slope*5

	return b.clamp(prediction), true
}

func (b *Buffer) weightedSlope() float64 {
	n := len(b.samples)
	if n < 2 {
		return 0.0
	}

	useCount := 3
	if n < useCount {
		useCount = n
	}
	recent := b.samples[n-useCount:]

	var weightedSum, weightSum float64
	for i := 1; i < len(recent); i++ {
		timeDiff := recent[i].timestamp.Sub(recent[i-1].timestamp).Seconds()
		if timeDiff <= 0 {
			timeDiff = 5.0
		}
		slope := (recent[i].value - recent[i-1].value) / timeDiff
		weight := recent[i].confidence * recent[i-1].confidence
		weightedSum += slope * weight
		weightSum += weight
	}

	if weightSum > 0 {
		return weightedSum / weightSum
	}
	return 0.0
}

func (b *Buffer) smoothedBaseValue() float64 {
	n := len(b.samples)
	if n == 1 {
		return b.samples[0].value
	}
	current := b.samples[n-1]
	previous := b.samples[n-2]

	adjustedAlpha := smoothingAlpha * current.confidence
	return adjustedAlpha*current.value + (1-adjustedAlpha)*previous.value
}

func (b *Buffer) exponentialDecayFallback() float64 {
	if len(b.samples) == 0 {
		return 0.0
	}

	lastActual := b.samples[0].value
	for i := len(b.samples) - 1; i >= 0; i-- {
		if !b.samples[i].predicted {
			lastActual = b.samples[i].value
			break
		}
	}

	decayFactor := math.Pow(0.95, float64(b.predictionStreak-b.maxPredictionStreak+1))
	return lastActual * decayFactor
}

// correctPreviousPredictions walks back from the sample just before the
// newly written actual value, discounting its correction the further back
// the predicted sample lies, and stops at the first older actual value.
func (b *Buffer) correctPreviousPredictions(actualValue float64) {
	n := len(b.samples)
	if n < 2 {
		return
	}

	lastPredicted := b.samples[n-2].value
	predictionError := actualValue - lastPredicted

	for i := 1; i < n; i++ {
		idx := n - 1 - i
		if !b.samples[idx].predicted {
			break
		}
		correctionFactor := math.Pow(0.5, float64(i-1)) * 0.3
		correction := predictionError * correctionFactor
		b.samples[idx].value = b.clamp(b.samples[idx].value + correction)
	}
}

// State is a read-only snapshot for debugging/monitoring endpoints.
type State struct {
	MetricName       string  `json:"metric_name"`
	CurrentValue     *float64 `json:"current_value"`
	IsPredicted      bool    `json:"is_predicted"`
	PredictionStreak int     `json:"prediction_streak"`
	Confidence       float64 `json:"confidence"`
	BufferSize       int     `json:"buffer_size"`
}

// LastTimestamp returns the timestamp of the most recent sample, if any.
func (b *Buffer) LastTimestamp() (time.Time, bool) {
	if len(b.samples) == 0 {
		return time.Time{}, false
	}
	return b.samples[len(b.samples)-1].timestamp, true
}

func (b *Buffer) CurrentState() State {
	state := State{MetricName: b.name, PredictionStreak: b.predictionStreak, BufferSize: len(b.samples)}
	if len(b.samples) == 0 {
		return state
	}
	last := b.samples[len(b.samples)-1]
	v := last.value
	state.CurrentValue = &v
	state.IsPredicted = last.predicted
	state.Confidence = last.confidence
	return state
}
