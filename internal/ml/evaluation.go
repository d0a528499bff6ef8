package ml

import (
	"math"
	"sort"
)

// ROCAUC computes the area under the ROC curve with the rank-sum statistic.
// Ties share the average rank. Returns 0.5 when only one class is present.
func ROCAUC(scores, labels []float64) float64 {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var pos, neg, rankSum float64
	for i, l := range labels {
		if l > 0.5 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}

// BrierScore is the mean squared error between probabilities and 0/1 outcomes
func BrierScore(probs, labels []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	var sum float64
	for i, p := range probs {
		d := p - labels[i]
		sum += d * d
	}
	return sum / float64(len(probs))
}

// ExpectedCalibrationError bins probabilities into equal-width bins and
// returns the count-weighted mean gap between confidence and hit rate.
func ExpectedCalibrationError(probs, labels []float64, bins int) float64 {
	if len(probs) == 0 {
		return 0
	}
	if bins <= 0 {
		bins = DefaultBucketCount
	}
	sumP := make([]float64, bins)
	sumY := make([]float64, bins)
	counts := make([]float64, bins)
	for i, p := range probs {
		b := bucketIndex(p, bins)
		sumP[b] += p
		sumY[b] += labels[i]
		counts[b]++
	}
	var ece float64
	total := float64(len(probs))
	for b := range counts {
		if counts[b] == 0 {
			continue
		}
		ece += counts[b] / total * math.Abs(sumP[b]/counts[b]-sumY[b]/counts[b])
	}
	return ece
}

// Accuracy is the share of outcomes on the predicted side of 0.5
func Accuracy(probs, labels []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	var hits float64
	for i, p := range probs {
		if (p >= 0.5) == (labels[i] > 0.5) {
			hits++
		}
	}
	return hits / float64(len(probs))
}
