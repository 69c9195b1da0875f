package urgency

import "math"

// Score caps per keyword tier. A yellow keyword can never push a letter into
// red, a green one never into yellow.
const (
	maxRedScore    = 100
	maxYellowScore = 79
	maxGreenScore  = 39

	redThreshold    = 80
	yellowThreshold = 40
)

// ScoringResult is the verdict for one letter.
type ScoringResult struct {
	Tier            Tier               `json:"urgency_tier"`
	Score           int                `json:"score"`
	Category        Category           `json:"category"`
	CategoryLabel   string             `json:"category_label"`
	Matches         []EvaluatedKeyword `json:"matches"`
	Summary         string             `json:"summary"`
	Recommendations []string           `json:"recommendations"`
}

// ActiveMatches returns the matches that were not neutralized.
func (r ScoringResult) ActiveMatches() []EvaluatedKeyword {
	var out []EvaluatedKeyword
	for _, m := range r.Matches {
		if m.Active() {
			out = append(out, m)
		}
	}
	return out
}

// Analyze collects and scores text in one step.
func Analyze(text string, deadlineDays *int) ScoringResult {
	return Score(CollectMatches(text), deadlineDays)
}

// Score reduces evaluated matches to a verdict. deadlineDays is nil when no
// deadline was found.
func Score(matches []EvaluatedKeyword, deadlineDays *int) ScoringResult {
	category := DetermineCategory(matches)
	score := computeScore(matches, DeadlineMultiplier(deadlineDays))
	tier := TierForScore(score)

	if matches == nil {
		matches = []EvaluatedKeyword{}
	}
	return ScoringResult{
		Tier:            tier,
		Score:           score,
		Category:        category,
		CategoryLabel:   CategoryLabel(category),
		Matches:         matches,
		Summary:         summaryText(tier, category),
		Recommendations: Recommendations(category),
	}
}

// DetermineCategory picks the category with the highest summed effective
// weight over active matches. Ties go to the earlier entry in Categories.
func DetermineCategory(matches []EvaluatedKeyword) Category {
	sums := make(map[Category]int)
	active := 0
	for _, m := range matches {
		if !m.Active() {
			continue
		}
		sums[m.Category] += m.EffectiveWeight
		active++
	}

	if active == 0 {
		// A letter whose every trigger was negated is still telling us something.
		if len(matches) > 0 {
			return CategoryInformational
		}
		return CategoryUnknown
	}

	best, bestSum := CategoryUnknown, -1
	for _, c := range Categories {
		if s, ok := sums[c]; ok && s > bestSum {
			best, bestSum = c, s
		}
	}
	return best
}

func computeScore(matches []EvaluatedKeyword, multiplier float64) int {
	maxByTier := make(map[Tier]int)
	for _, m := range matches {
		if !m.Active() {
			continue
		}
		if cur, ok := maxByTier[m.Tier]; !ok || m.EffectiveWeight > cur {
			maxByTier[m.Tier] = m.EffectiveWeight
		}
	}

	if w, ok := maxByTier[TierRed]; ok {
		return min(maxRedScore, int(math.Round(float64(w)*multiplier)))
	}
	if w, ok := maxByTier[TierYellow]; ok {
		return min(maxYellowScore, int(math.Round(float64(w)*multiplier)))
	}
	if w, ok := maxByTier[TierGreen]; ok {
		return min(maxGreenScore, w)
	}
	return 0
}

// DeadlineMultiplier scales red and yellow scores by how close the deadline
// is. Deadlines already past count as imminent.
func DeadlineMultiplier(days *int) float64 {
	switch {
	case days == nil:
		return 1.0
	case *days <= 3:
		return 1.5
	case *days <= 7:
		return 1.25
	case *days <= 14:
		return 1.1
	default:
		return 1.0
	}
}

// TierForScore maps a score to its traffic light.
func TierForScore(score int) Tier {
	switch {
	case score >= redThreshold:
		return TierRed
	case score >= yellowThreshold:
		return TierYellow
	default:
		return TierGreen
	}
}
