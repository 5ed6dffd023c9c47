package analysis

import (
	"strings"

	"github.com/team-Plog/plog-sub000/pkg/models"
	"github.com/team-Plog/plog-sub000/pkg/shared/math"
)

const duplicateInsightThreshold = 0.92

// DedupInsights drops any insight whose bag-of-words vector is more similar
// than duplicateInsightThreshold to an insight already kept, walking
// categories in categoryOrder so the comprehensive analysis's insights win
// ties against the narrower ones.
func DedupInsights(categories map[string]models.SubAnalysis) map[string]models.SubAnalysis {
	var kept []string
	var keptVectors [][]float64
	vocab := map[string]int{}

	out := make(map[string]models.SubAnalysis, len(categories))
	for _, category := range categoryOrder {
		sub, ok := categories[category]
		if !ok {
			continue
		}

		var unique []string
		for _, insight := range sub.Insights {
			vec := vectorize(insight, vocab)
			isDuplicate := false
			for _, keptVec := range keptVectors {
				if math.CosineSimilarity(pad(vec, len(vocab)), pad(keptVec, len(vocab))) >= duplicateInsightThreshold {
					isDuplicate = true
					break
				}
			}
			if isDuplicate {
				continue
			}
			unique = append(unique, insight)
			kept = append(kept, insight)
			keptVectors = append(keptVectors, vec)
		}
		sub.Insights = unique
		out[category] = sub
	}
	return out
}

// vectorize builds a bag-of-words frequency vector over vocab, growing
// vocab with any new word encountered.
func vectorize(text string, vocab map[string]int) []float64 {
	counts := map[int]float64{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		idx, ok := vocab[word]
		if !ok {
			idx = len(vocab)
			vocab[word] = idx
		}
		counts[idx]++
	}

	vec := make([]float64, len(vocab))
	for idx, count := range counts {
		vec[idx] = count
	}
	return vec
}

// pad right-extends vec with zeros to width, since vocab grows as later
// insights introduce new words after an earlier vector was built.
func pad(vec []float64, width int) []float64 {
	if len(vec) >= width {
		return vec
	}
	out := make([]float64, width)
	copy(out, vec)
	return out
}
