package record

import "github.com/trezcool/darasa/core/change"

// Summary aggregates marks over one branch of a set of overlay views.
type Summary struct {
	Obtained   float64 `json:"obtained"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade"`
}

// Grade maps a percentage to the report-card letter grade.
func Grade(percent float64) string {
	switch {
	case percent >= 90:
		return "A"
	case percent >= 80:
		return "B"
	case percent >= 70:
		return "C"
	case percent >= 60:
		return "D"
	default:
		return "F"
	}
}

// Summarize computes the aggregates twice, once over the committed-only branch
// and once over the pending-preferred branch, producing the paired
// strike-through/highlight comparison the UI renders while requests are
// pending.
func Summarize(views []OverlayView, markField, totalField string) (committed, effective Summary) {
	for _, v := range views {
		committed = committed.add(v.Committed(), markField, totalField)
		effective = effective.add(v.Effective(), markField, totalField)
	}
	committed.finalize()
	effective.finalize()
	return committed, effective
}

func (s Summary) add(fields change.FieldSet, markField, totalField string) Summary {
	if obtained, ok := fields.Float(markField); ok {
		s.Obtained += obtained
	}
	if total, ok := fields.Float(totalField); ok {
		s.Total += total
	}
	return s
}

func (s *Summary) finalize() {
	if s.Total > 0 {
		s.Percentage = s.Obtained / s.Total * 100
	}
	s.Grade = Grade(s.Percentage)
}
