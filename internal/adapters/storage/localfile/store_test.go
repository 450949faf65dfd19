package localfile

import (
	"errors"
	"path/filepath"
	"testing"

	"receta-veterinaria/internal/domain/prescriptions"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "recetas-local.json"))
}

func rec(id, paciente string) prescriptions.RawRecord {
	return prescriptions.RawRecord{
		ID:       id,
		Paciente: paciente,
		Tutora:   "Maria",
		Fecha:    "2024-03-15",
		Medicamentos: []prescriptions.RawMedication{
			{Nombre: "Amoxicilina", Indicacion: "500mg"},
		},
	}
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)

	recs, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("recs = %+v", recs)
	}

	n, err := s.Count()
	if err != nil || n != 0 {
		t.Errorf("count = %d, err = %v", n, err)
	}
}

func TestStore_AppendAndLoad(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append(rec("1", "Firulais")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(rec("2", "Rocky")); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "1" || recs[1].ID != "2" {
		t.Errorf("recs = %+v", recs)
	}
	if recs[0].Medicamentos[0].Nombre != "Amoxicilina" {
		t.Errorf("medication lost: %+v", recs[0])
	}
}

func TestStore_Get(t *testing.T) {
	s := newTestStore(t)
	_ = s.Append(rec("1", "Firulais"))

	got, err := s.Get("1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Paciente != "Firulais" {
		t.Errorf("got = %+v", got)
	}

	if _, err := s.Get("nope"); !errors.Is(err, prescriptions.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	_ = s.Append(rec("1", "Firulais"))
	_ = s.Append(rec("2", "Rocky"))

	existed, err := s.Delete("1")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}

	existed, err = s.Delete("1")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if existed {
		t.Error("second delete reported existed=true")
	}

	recs, _ := s.Load()
	if len(recs) != 1 || recs[0].ID != "2" {
		t.Errorf("recs = %+v", recs)
	}
}

func TestStore_SearchBothKeySets(t *testing.T) {
	s := newTestStore(t)
	_ = s.Append(rec("1", "Firulais"))
	_ = s.Append(prescriptions.RawRecord{ID: "2", PatientName: "Rocky", OwnerName: "Pedro"})

	got, err := s.Search("ROCKY")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("got = %+v", got)
	}

	got, _ = s.Search("maria")
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("got = %+v", got)
	}
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	_ = s.Append(rec("1", "Firulais"))

	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := s.Count(); n != 0 {
		t.Errorf("count = %d after clear", n)
	}

	// Clear sobre store ya vacío no es error.
	if err := s.Clear(); err != nil {
		t.Errorf("second clear: %v", err)
	}
}
