package prescriptions

import (
	"context"
	"errors"
	"testing"
)

func TestBulkImport_AllValid(t *testing.T) {
	repo := newTestRepo()
	bulk := NewBulkImporter(newTestService(repo))

	raws := []RawRecord{
		{
			Paciente: "Firulais", Tutora: "Maria", Fecha: "2024-03-15",
			Medicamentos: []RawMedication{{Nombre: "Amoxicilina", Indicacion: "500mg"}},
		},
		{
			PatientName: "Rocky", OwnerName: "Pedro", PrescriptionDate: "15/03/2024",
			Medications: []RawMedication{{MedicationName: "Meloxicam", Instructions: "0.1mg/kg"}},
		},
	}

	res := bulk.Import(context.Background(), raws)

	if res.Imported != 2 || res.Total != 2 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if n, _ := repo.Count(context.Background()); n != 2 {
		t.Errorf("persisted = %d", n)
	}
}

func TestBulkImport_PartialFailureContinues(t *testing.T) {
	repo := newTestRepo()
	bulk := NewBulkImporter(newTestService(repo))

	raws := []RawRecord{
		{
			Paciente: "Firulais", Tutora: "Maria", Fecha: "2024-03-15",
			Medicamentos: []RawMedication{{Nombre: "Amoxicilina", Indicacion: "500mg"}},
		},
		{Paciente: "X"}, // sin medicamentos: inválido
		{
			Paciente: "Luna", Tutora: "Ana", Fecha: "2024-04-01",
			Medicamentos: []RawMedication{{Nombre: "Omeprazol", Indicacion: "1mg/kg"}},
		},
	}

	res := bulk.Import(context.Background(), raws)

	if res.Imported != 2 || res.Total != 3 {
		t.Fatalf("imported=%d total=%d", res.Imported, res.Total)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if res.Errors[0].Index != 1 {
		t.Errorf("error index = %d, want 1", res.Errors[0].Index)
	}
	if res.Errors[0].Original.Paciente != "X" {
		t.Errorf("original not preserved: %+v", res.Errors[0].Original)
	}

	// Invariante dura del lote.
	if res.Imported+len(res.Errors) != res.Total {
		t.Error("imported + errors != total")
	}

	// El registro válido quedó persistido completo pese a la falla vecina.
	if n, _ := repo.Count(context.Background()); n != 2 {
		t.Errorf("persisted = %d", n)
	}
}

func TestBulkImport_StoreFailureIsIsolated(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)
	bulk := NewBulkImporter(svc)

	valid := RawRecord{
		Paciente: "Firulais", Tutora: "Maria", Fecha: "2024-03-15",
		Medicamentos: []RawMedication{{Nombre: "Amoxicilina", Indicacion: "500mg"}},
	}

	repo.failCreate = errors.New("disk full")
	res := bulk.Import(context.Background(), []RawRecord{valid, valid})

	if res.Imported != 0 || len(res.Errors) != 2 {
		t.Fatalf("result = %+v", res)
	}
	// La llamada en sí nunca falla: el caller inspecciona Errors.
	if res.Errors[0].Index != 0 || res.Errors[1].Index != 1 {
		t.Errorf("indices = %d, %d", res.Errors[0].Index, res.Errors[1].Index)
	}
}

func TestBulkImport_NoDeduplication(t *testing.T) {
	repo := newTestRepo()
	bulk := NewBulkImporter(newTestService(repo))

	rec := RawRecord{
		Paciente: "Firulais", Tutora: "Maria", Fecha: "2024-03-15",
		Medicamentos: []RawMedication{{Nombre: "Amoxicilina", Indicacion: "500mg"}},
	}

	bulk.Import(context.Background(), []RawRecord{rec})
	bulk.Import(context.Background(), []RawRecord{rec})

	// Sin clave natural no hay dedup: dos imports, dos recetas.
	if n, _ := repo.Count(context.Background()); n != 2 {
		t.Errorf("persisted = %d, want 2", n)
	}
}

func TestBulkImport_AddsProvenanceNote(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)
	bulk := NewBulkImporter(svc)

	res := bulk.Import(context.Background(), []RawRecord{{
		Paciente: "Firulais", Tutora: "Maria", Fecha: "2024-03-15",
		Medicamentos: []RawMedication{{Nombre: "Amoxicilina", Indicacion: "500mg"}},
	}})

	if res.Imported != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Results[0].Notes == "" {
		t.Error("imported record should carry a provenance note")
	}
}
