package ml

import (
	"fmt"
	"math"
	"sort"
)

// DefaultBucketCount is the number of equal-width raw score buckets used for confidence intervals
const DefaultBucketCount = 10

// MaxConfidenceInterval bounds the reported interval, in percentage points
const MaxConfidenceInterval = 50.0

// IsotonicCalibrator is a monotone non-decreasing map from raw score to probability.
// X holds block mean scores in increasing order, Y the fitted probability per block.
type IsotonicCalibrator struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// FitIsotonic fits the calibrator with pool-adjacent-violators
func FitIsotonic(scores, labels []float64) (*IsotonicCalibrator, error) {
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("%d scores but %d labels", len(scores), len(labels))
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("no calibration points")
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	type block struct {
		sumX, sumY, weight float64
	}
	blocks := make([]block, 0, len(scores))
	for _, i := range idx {
		blocks = append(blocks, block{sumX: scores[i], sumY: labels[i], weight: 1})
		for len(blocks) > 1 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.sumY/prev.weight <= last.sumY/last.weight {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{
				sumX:   prev.sumX + last.sumX,
				sumY:   prev.sumY + last.sumY,
				weight: prev.weight + last.weight,
			})
		}
	}

	cal := &IsotonicCalibrator{
		X: make([]float64, len(blocks)),
		Y: make([]float64, len(blocks)),
	}
	for i, b := range blocks {
		cal.X[i] = b.sumX / b.weight
		cal.Y[i] = b.sumY / b.weight
	}
	return cal, nil
}

// Apply maps a raw score to a calibrated probability, interpolating linearly between blocks
func (c *IsotonicCalibrator) Apply(raw float64) float64 {
	if c == nil || len(c.X) == 0 {
		return clamp(raw, 0, 1)
	}
	if raw <= c.X[0] {
		return clamp(c.Y[0], 0, 1)
	}
	last := len(c.X) - 1
	if raw >= c.X[last] {
		return clamp(c.Y[last], 0, 1)
	}
	i := sort.SearchFloat64s(c.X, raw)
	if c.X[i] == raw {
		return clamp(c.Y[i], 0, 1)
	}
	x0, x1 := c.X[i-1], c.X[i]
	y0, y1 := c.Y[i-1], c.Y[i]
	t := (raw - x0) / (x1 - x0)
	return clamp(y0+t*(y1-y0), 0, 1)
}

// Validate checks the calibrator is well formed
func (c *IsotonicCalibrator) Validate() error {
	if len(c.X) != len(c.Y) {
		return fmt.Errorf("isotonic calibrator has %d thresholds but %d values", len(c.X), len(c.Y))
	}
	for i := 1; i < len(c.X); i++ {
		if c.X[i] < c.X[i-1] || c.Y[i] < c.Y[i-1] {
			return fmt.Errorf("isotonic calibrator is not monotone at %d", i)
		}
	}
	return nil
}

// ConfidenceBuckets records how many out-of-fold predictions fell in each
// equal-width raw score bucket on [0,1].
type ConfidenceBuckets struct {
	Counts []int `json:"counts"`
}

// NewConfidenceBuckets counts raw scores into n buckets
func NewConfidenceBuckets(raw []float64, n int) ConfidenceBuckets {
	if n <= 0 {
		n = DefaultBucketCount
	}
	b := ConfidenceBuckets{Counts: make([]int, n)}
	for _, r := range raw {
		b.Counts[bucketIndex(r, n)]++
	}
	return b
}

// Interval returns the symmetric half-width, in percentage points, of the
// 95% interval for prob given the support of raw's bucket. An empty bucket
// yields the maximum.
func (b ConfidenceBuckets) Interval(raw, prob float64) float64 {
	if len(b.Counts) == 0 {
		return MaxConfidenceInterval
	}
	n := b.Counts[bucketIndex(raw, len(b.Counts))]
	if n <= 0 {
		return MaxConfidenceInterval
	}
	p := clamp(prob, 0, 1)
	ci := 100 * 1.96 * math.Sqrt(p*(1-p)/float64(n))
	return clamp(ci, 0, MaxConfidenceInterval)
}

// Calibration bundles the calibration map and interval buckets of a version
type Calibration struct {
	Method   string              `json:"method"`
	Isotonic *IsotonicCalibrator `json:"isotonic"`
	Buckets  ConfidenceBuckets   `json:"buckets"`
}

func bucketIndex(raw float64, n int) int {
	i := int(math.Floor(raw * float64(n)))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
