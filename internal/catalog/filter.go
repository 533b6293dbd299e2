package catalog

import "strings"

// Filter returns the records whose id, caption, tags or exercise title
// contain query, ignoring case. A blank query keeps every record.
func Filter(records []ImageRecord, query string) []ImageRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records
	}
	out := make([]ImageRecord, 0, len(records))
	for _, r := range records {
		if matchesQuery(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func matchesQuery(r ImageRecord, q string) bool {
	if strings.Contains(strings.ToLower(r.ID), q) || strings.Contains(strings.ToLower(r.Caption), q) {
		return true
	}
	for _, t := range r.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return r.AssociatedExercise != nil && strings.Contains(strings.ToLower(r.AssociatedExercise.Title), q)
}

// WithExercises keeps the records linked to an exercise. A matched record
// that has an exercise is placed first and not repeated further down; one
// without an exercise is left out like any other.
func WithExercises(records []ImageRecord, matched *ImageRecord) []ImageRecord {
	out := make([]ImageRecord, 0, len(records)+1)
	promoted := matched != nil && matched.HasExercise()
	if promoted {
		out = append(out, *matched)
	}
	for _, r := range records {
		if !r.HasExercise() {
			continue
		}
		if promoted && r.ID == matched.ID {
			continue
		}
		out = append(out, r)
	}
	return out
}
