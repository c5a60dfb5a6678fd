package answer

// Summary counts results by confidence band.
type Summary struct {
	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`
	NeedsReview      int `json:"needs_review"`
}

// Summarize counts results at or above HighConfidence, between
// LowConfidence and HighConfidence, below LowConfidence, and those that
// need review.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Confidence >= HighConfidence:
			s.HighConfidence++
		case r.Confidence >= LowConfidence:
			s.MediumConfidence++
		default:
			s.LowConfidence++
		}
		if r.NeedsReview {
			s.NeedsReview++
		}
	}
	return s
}
