package netstate

import "log/slog"

const (
	QualityMin = 0
	QualityMax = 100

	rssiFloor   = -100
	rssiCeiling = -50
)

// SignalVerdict is an edge-triggered weak/strong classification of wireless
// signal quality. Weak carries the state entered by the transition.
type SignalVerdict struct {
	Weak    bool
	Quality int
	RSSI    int
}

// SignalTracker classifies 0-100 quality samples into weak/strong verdicts
// using a two-threshold hysteresis band: quality at or below the drop
// threshold flips the state to weak, quality at or above the recover
// threshold flips it back to strong. Samples inside the band never trigger,
// so a signal oscillating between the thresholds stays quiet.
//
// Observe assumes clamped input and is not safe for concurrent use; callers
// serialize access (the monitor coordinator holds a mutex across it).
type SignalTracker struct {
	logger *slog.Logger

	thresholdDrop    int
	thresholdRecover int

	initialized bool
	isWeak      bool
	lastQuality int
}

// NewSignalTracker builds a tracker with the given thresholds, clamped to
// [0,100]. A recover threshold at or below the drop threshold degenerates
// hysteresis into plain thresholding; that is accepted but logged, matching
// the behavior the configuration surface documents.
func NewSignalTracker(dropThreshold, recoverThreshold int, logger *slog.Logger) *SignalTracker {
	if logger == nil {
		logger = slog.Default()
	}
	dropThreshold = ClampQuality(dropThreshold)
	recoverThreshold = ClampQuality(recoverThreshold)

	switch {
	case recoverThreshold < dropThreshold:
		logger.Warn("signal recover threshold below drop threshold, hysteresis band inverted",
			"drop", dropThreshold, "recover", recoverThreshold)
	case recoverThreshold == dropThreshold:
		logger.Warn("signal thresholds equal, hysteresis collapses to a single threshold",
			"threshold", dropThreshold)
	}

	return &SignalTracker{
		logger:           logger,
		thresholdDrop:    dropThreshold,
		thresholdRecover: recoverThreshold,
	}
}

// Observe feeds one quality sample through the hysteresis rule. The verdict
// is meaningful only when the second return value is true, which happens
// exactly when the weak/strong state changed.
//
// The first sample after construction (or Reset) initializes the state by
// comparing against the drop threshold alone and emits a verdict only when
// that initial state is weak: the tracker starts from a strong assumption,
// and only a deviation from it is worth reporting.
func (t *SignalTracker) Observe(quality int) (SignalVerdict, bool) {
	t.lastQuality = quality

	switch {
	case !t.initialized:
		t.initialized = true
		t.isWeak = quality <= t.thresholdDrop
		if !t.isWeak {
			return SignalVerdict{}, false
		}

		return t.verdict(quality), true
	case !t.isWeak && quality <= t.thresholdDrop:
		t.isWeak = true

		return t.verdict(quality), true
	case t.isWeak && quality >= t.thresholdRecover:
		t.isWeak = false

		return t.verdict(quality), true
	default:
		return SignalVerdict{}, false
	}
}

// Reset drops the tracker back to its pre-first-sample state so the next
// observation re-derives the initial classification. Used when the wireless
// link disassociates: the next association should not edge-trigger against
// the state of the previous one.
func (t *SignalTracker) Reset() {
	t.initialized = false
	t.isWeak = false
	t.lastQuality = 0
}

func (t *SignalTracker) Weak() bool { return t.initialized && t.isWeak }

// LastQuality returns the most recently observed sample. Diagnostics only;
// the classification rule never reads it.
func (t *SignalTracker) LastQuality() int { return t.lastQuality }

func (t *SignalTracker) verdict(quality int) SignalVerdict {
	return SignalVerdict{Weak: t.isWeak, Quality: quality, RSSI: EstimateRSSI(quality)}
}

// EstimateRSSI converts a 0-100 quality score to an approximate dBm value,
// linear between -100 dBm (quality 0) and -50 dBm (quality 100). An
// estimate, not a hardware measurement.
func EstimateRSSI(quality int) int {
	switch {
	case quality <= QualityMin:
		return rssiFloor
	case quality >= QualityMax:
		return rssiCeiling
	default:
		return quality/2 - 100
	}
}

// QualityFromRSSI is the inverse mapping for sources that report dBm
// directly: -100 dBm or lower maps to quality 0, -50 dBm or higher to 100.
func QualityFromRSSI(rssi int) int {
	return ClampQuality((rssi + 100) * 2)
}

// ClampQuality forces a quality value into the [0,100] domain.
func ClampQuality(quality int) int {
	if quality < QualityMin {
		return QualityMin
	}
	if quality > QualityMax {
		return QualityMax
	}

	return quality
}
