package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"receta-veterinaria/internal/domain/prescriptions"
)

type stored struct {
	p   prescriptions.Prescription
	seq int // desempate cuando dos recetas comparten created_at
}

type prescriptionsRepo struct {
	mu   sync.RWMutex
	byID map[string]stored
	seq  int
}

// NewPrescriptionsRepo crea el repo in-memory que respalda el modo dev
// (sin DATABASE_URL) y los tests del service.
func NewPrescriptionsRepo() prescriptions.Repository {
	return &prescriptionsRepo{
		byID: make(map[string]stored),
	}
}

func (r *prescriptionsRepo) Create(ctx context.Context, p prescriptions.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		return errors.New("prescription id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("prescription already exists")
	}

	r.seq++
	r.byID[p.ID] = stored{p: clone(p), seq: r.seq}
	return nil
}

func (r *prescriptionsRepo) GetByID(ctx context.Context, id string) (prescriptions.Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return prescriptions.Prescription{}, prescriptions.ErrNotFound
	}
	return clone(s.p), nil
}

func (r *prescriptionsRepo) List(ctx context.Context, limit, offset int) ([]prescriptions.Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.sorted()
	if offset >= len(all) {
		return []prescriptions.Prescription{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *prescriptionsRepo) Search(ctx context.Context, term string, limit int) ([]prescriptions.Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(term))

	out := make([]prescriptions.Prescription, 0)
	for _, p := range r.sorted() {
		hay := strings.ToLower(p.PatientName + " " + p.OwnerName + " " + p.Notes)
		if strings.Contains(hay, needle) {
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *prescriptionsRepo) Update(ctx context.Context, p prescriptions.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[p.ID]
	if !ok {
		return prescriptions.ErrNotFound
	}

	// created_at es del store, no del caller.
	p.CreatedAt = prev.p.CreatedAt
	r.byID[p.ID] = stored{p: clone(p), seq: prev.seq}
	return nil
}

func (r *prescriptionsRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}

func (r *prescriptionsRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

func (r *prescriptionsRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.byID {
		if !s.p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// sorted devuelve todas las recetas por creación descendente.
func (r *prescriptionsRepo) sorted() []prescriptions.Prescription {
	all := make([]stored, 0, len(r.byID))
	for _, s := range r.byID {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].p.CreatedAt.Equal(all[j].p.CreatedAt) {
			return all[i].p.CreatedAt.After(all[j].p.CreatedAt)
		}
		return all[i].seq > all[j].seq
	})

	out := make([]prescriptions.Prescription, 0, len(all))
	for _, s := range all {
		out = append(out, clone(s.p))
	}
	return out
}

// clone copia la receta con su slice de items, para que el caller no
// pueda mutar lo almacenado por alias.
func clone(p prescriptions.Prescription) prescriptions.Prescription {
	items := make([]prescriptions.MedicationItem, len(p.Medications))
	copy(items, p.Medications)
	p.Medications = items
	return p
}
