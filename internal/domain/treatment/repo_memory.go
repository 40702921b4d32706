package treatment

import (
	"context"
	"sort"
	"sync"
)

type memoryRepo struct {
	mu     sync.RWMutex
	byID   map[int]PatientTreatment
	byCode map[string]int
}

// NewMemoryRepository returns a Repository holding records in process memory.
func NewMemoryRepository(records ...PatientTreatment) Repository {
	r := &memoryRepo{
		byID:   make(map[int]PatientTreatment, len(records)),
		byCode: make(map[string]int, len(records)),
	}
	for _, rec := range records {
		r.byID[rec.ID] = rec
		r.byCode[rec.TreatmentCode] = rec.ID
	}
	return r
}

func (r *memoryRepo) List(_ context.Context) ([]*PatientTreatment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*PatientTreatment, 0, len(r.byID))
	for _, rec := range r.byID {
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id int) (*PatientTreatment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *memoryRepo) GetByCodes(_ context.Context, codes []string) ([]*PatientTreatment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*PatientTreatment, 0, len(codes))
	seen := make(map[int]bool, len(codes))
	for _, code := range codes {
		id, ok := r.byCode[code]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		rec := r.byID[id]
		out = append(out, &rec)
	}
	return out, nil
}
