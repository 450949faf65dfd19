package prescriptions

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Prescription
	seq  map[string]int
	next int

	failCreate error // si está seteado, Create falla
}

func newTestRepo() *testRepo {
	return &testRepo{
		byID: map[string]Prescription{},
		seq:  map[string]int{},
	}
}

func (r *testRepo) Create(ctx context.Context, p Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failCreate != nil {
		return r.failCreate
	}
	if p.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[p.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.next++
	r.byID[p.ID] = p
	r.seq[p.ID] = r.next
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return Prescription{}, ErrNotFound
	}
	return p, nil
}

func (r *testRepo) List(ctx context.Context, limit, offset int) ([]Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.sorted()
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *testRepo) Search(ctx context.Context, term string, limit int) ([]Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Prescription, 0)
	for _, p := range r.sorted() {
		if containsFold(p.PatientName, term) ||
			containsFold(p.OwnerName, term) ||
			containsFold(p.Notes, term) {
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *testRepo) Update(ctx context.Context, p Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = prev.CreatedAt
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	delete(r.byID, id)
	delete(r.seq, id)
	return true, nil
}

func (r *testRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

func (r *testRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.byID {
		if !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *testRepo) sorted() []Prescription {
	out := make([]Prescription, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out
}

func containsFold(hay, needle string) bool {
	return strings.Contains(strings.ToLower(hay), strings.ToLower(needle))
}

// -------------------------
// Helpers
// -------------------------

func validRecord() CanonicalRecord {
	return CanonicalRecord{
		PatientName:      "Firulais",
		OwnerName:        "Maria",
		PrescriptionDate: "2024-03-15",
		Medications: []MedicationItem{
			{Name: "Amoxicilina", Instructions: "500mg cada 12h por 7 dias"},
		},
	}
}

func newTestService(repo *testRepo) *Service {
	svc := NewService(repo)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return svc
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_AssignsIDTimestampsAndDefaults(t *testing.T) {
	svc := newTestService(newTestRepo())

	p, err := svc.Create(context.Background(), validRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if p.ID == "" {
		t.Error("id not assigned")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("timestamps not assigned")
	}
	if p.VeterinarianName != DefaultVeterinarianName {
		t.Errorf("veterinarian = %q", p.VeterinarianName)
	}
	if p.VeterinarianLicense != DefaultVeterinarianLicense {
		t.Errorf("license = %q", p.VeterinarianLicense)
	}
}

func TestService_CreateThenGet_RoundTrip(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.PatientName != "Firulais" || got.OwnerName != "Maria" {
		t.Errorf("got %+v", got)
	}
	if len(got.Medications) != 1 || got.Medications[0].Name != "Amoxicilina" {
		t.Errorf("medications = %+v", got.Medications)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := newTestService(newTestRepo())

	cases := []struct {
		name string
		mut  func(*CanonicalRecord)
	}{
		{"missing patient", func(r *CanonicalRecord) { r.PatientName = "" }},
		{"missing owner", func(r *CanonicalRecord) { r.OwnerName = "" }},
		{"missing date", func(r *CanonicalRecord) { r.PrescriptionDate = "" }},
		{"bad date", func(r *CanonicalRecord) { r.PrescriptionDate = "15/03/2024" }},
		{"no medications", func(r *CanonicalRecord) { r.Medications = nil }},
		{"medication without name", func(r *CanonicalRecord) {
			r.Medications = []MedicationItem{{Instructions: "500mg"}}
		}},
		{"medication without instructions", func(r *CanonicalRecord) {
			r.Medications = []MedicationItem{{Name: "Amoxicilina"}}
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := validRecord()
			c.mut(&rec)
			if _, err := svc.Create(context.Background(), rec); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestService_Update_ReplacesItemsExactly(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := validRecord()
	rec.Medications = []MedicationItem{
		{Name: "Meloxicam", Instructions: "0.1mg/kg cada 24h"},
		{Name: "Omeprazol", Instructions: "1mg/kg cada 24h"},
	}

	updated, err := svc.Update(context.Background(), created.ID, rec)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(updated.Medications) != 2 {
		t.Fatalf("medications = %+v", updated.Medications)
	}
	if updated.Medications[0].Name != "Meloxicam" || updated.Medications[1].Name != "Omeprazol" {
		t.Errorf("order not preserved: %+v", updated.Medications)
	}
	for _, m := range updated.Medications {
		if m.Name == "Amoxicilina" {
			t.Error("old item survived the replace")
		}
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("created_at changed on update")
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Error("updated_at not advanced")
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc := newTestService(newTestRepo())

	_, err := svc.Update(context.Background(), "nope", validRecord())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestService_Delete_Idempotent(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	existed, err := svc.Delete(context.Background(), created.ID)
	if err != nil || !existed {
		t.Fatalf("first delete: existed=%v err=%v", existed, err)
	}

	existed, err = svc.Delete(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("second delete must not error: %v", err)
	}
	if existed {
		t.Error("second delete reported existed=true")
	}
}

func TestService_Search_MatchesThreeFieldsNewestFirst(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	mk := func(patient, owner, notes string) Prescription {
		rec := validRecord()
		rec.PatientName = patient
		rec.OwnerName = owner
		rec.Notes = notes
		p, err := svc.Create(context.Background(), rec)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return p
	}

	first := mk("Firulais", "Maria", "")
	second := mk("Rocky", "mariana lopez", "")
	third := mk("Luna", "Pedro", "control con MARIA")
	_ = mk("Max", "Pedro", "sin coincidencia")

	got, err := svc.Search(context.Background(), "maria", 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}
	// Descendente por creación.
	if got[0].ID != third.ID || got[1].ID != second.ID || got[2].ID != first.ID {
		t.Errorf("order = %s, %s, %s", got[0].PatientName, got[1].PatientName, got[2].PatientName)
	}
}

func TestService_Stats(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), validRecord()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Recent != 3 {
		t.Errorf("stats = %+v", st)
	}
}
