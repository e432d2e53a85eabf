package classifier

import (
	"fmt"
	"slices"
)

// Metrics summarises binary classification quality on a held-out set.
type Metrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Accuracy  float64
	ROCAUC    float64
	Samples   int
	Positives int
}

// Evaluate thresholds proba at threshold and scores the predictions against y.
// Undefined ratios (no predicted or no actual positives) are reported as 0.
func Evaluate(y []int, proba []float64, threshold float64) (Metrics, error) {
	if len(y) != len(proba) {
		return Metrics{}, fmt.Errorf("%d labels but %d predictions", len(y), len(proba))
	}
	var tp, fp, tn, fn int
	for i, label := range y {
		predicted := proba[i] >= threshold
		switch {
		case predicted && label == 1:
			tp++
		case predicted:
			fp++
		case label == 1:
			fn++
		default:
			tn++
		}
	}
	m := Metrics{
		Samples:   len(y),
		Positives: tp + fn,
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
		Accuracy:  ratio(tp+tn, len(y)),
		ROCAUC:    ROCAUC(y, proba),
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ROCAUC computes the area under the ROC curve as the normalised Mann-Whitney U statistic,
// giving tied scores their average rank. It returns 0.5 when only one class is present.
func ROCAUC(y []int, scores []float64) float64 {
	n := len(y)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] < scores[b]:
			return -1
		case scores[a] > scores[b]:
			return 1
		default:
			return 0
		}
	})

	var positives, rankSum float64
	for start := 0; start < n; {
		end := start + 1
		for end < n && scores[order[end]] == scores[order[start]] {
			end++
		}
		// Ranks are 1-based; the tie group shares the mean of start+1..end.
		avgRank := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			if y[order[k]] == 1 {
				positives++
				rankSum += avgRank
			}
		}
		start = end
	}
	negatives := float64(n) - positives
	if positives == 0 || negatives == 0 {
		return 0.5
	}
	return (rankSum - positives*(positives+1)/2) / (positives * negatives)
}
