package entities

// VocabItem is the minimal surface of a vocabulary entry this core needs:
// enough to show a question and build distractors. The full content model
// lives outside this service.
type VocabItem struct {
	ID    int64  `json:"id"`
	Lemma string `json:"lemma"`
	Gloss string `json:"gloss"`
	Level string `json:"level"` // difficulty band, e.g. "A1".."C2" or "N5".."N1"
}
