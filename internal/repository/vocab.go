package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/vocaloop/srs-core/internal/domain/entities"
)

var ErrVocabNotFound = errors.New("vocab item not found")

// VocabRepository provides read-only access to the vocabulary items this
// core can reference. The content model lives outside the service; a JSON
// snapshot is enough surface for queue detail and quiz distractors.
type VocabRepository struct {
	items []*entities.VocabItem
	byID  map[int64]*entities.VocabItem
	byLvl map[string][]*entities.VocabItem
}

// NewVocabRepository loads the vocabulary snapshot from a JSON file.
func NewVocabRepository(path string) (*VocabRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocab file: %w", err)
	}

	var items []*entities.VocabItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse vocab file: %w", err)
	}

	r := &VocabRepository{
		items: items,
		byID:  make(map[int64]*entities.VocabItem, len(items)),
		byLvl: make(map[string][]*entities.VocabItem),
	}
	for _, it := range items {
		r.byID[it.ID] = it
		r.byLvl[it.Level] = append(r.byLvl[it.Level], it)
	}
	return r, nil
}

// GetByID retrieves a vocabulary item.
func (r *VocabRepository) GetByID(id int64) (*entities.VocabItem, error) {
	it, ok := r.byID[id]
	if !ok {
		return nil, ErrVocabNotFound
	}
	return it, nil
}

// SameLevelDistractors returns up to count glosses from items on the same
// level as the target, excluding the target itself and any id in exclude.
func (r *VocabRepository) SameLevelDistractors(target *entities.VocabItem, exclude map[int64]bool, count int) []string {
	pool := r.byLvl[target.Level]
	if len(pool) == 0 {
		pool = r.items
	}

	candidates := make([]*entities.VocabItem, 0, len(pool))
	for _, it := range pool {
		if it.ID == target.ID || exclude[it.ID] || it.Gloss == target.Gloss {
			continue
		}
		candidates = append(candidates, it)
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	seen := map[string]bool{target.Gloss: true}
	out := make([]string, 0, count)
	for _, it := range candidates {
		if len(out) >= count {
			break
		}
		if seen[it.Gloss] {
			continue
		}
		seen[it.Gloss] = true
		out = append(out, it.Gloss)
	}
	return out
}
