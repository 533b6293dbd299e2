package catalog

// ImageRecord describes one known image of the catalog document.
// Field names follow the JSON document (alt is the caption).
type ImageRecord struct {
	ID                 string              `json:"id"`
	URL                string              `json:"url"`
	Caption            string              `json:"alt,omitempty"`
	Tags               []string            `json:"tags,omitempty"`
	AssociatedExercise *AssociatedExercise `json:"associatedExercise,omitempty"`
}

// AssociatedExercise links a catalog image to an exercise.
type AssociatedExercise struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// HasExercise reports whether the record points at an exercise.
func (r ImageRecord) HasExercise() bool {
	return r.AssociatedExercise != nil && r.AssociatedExercise.ID != ""
}

// ScoredCandidate pairs a record with its relevance score.
type ScoredCandidate struct {
	Record ImageRecord `json:"record"`
	Score  int         `json:"score"`
}
