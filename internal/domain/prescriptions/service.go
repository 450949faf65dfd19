package prescriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = fmt.Errorf("invalid input")

	// ErrWriteFailed envuelve fallas de transacción del backing store.
	ErrWriteFailed = fmt.Errorf("write failed")
)

// Service arma el agregado a partir de un registro ya canonicalizado:
// recorta, aplica la identidad por defecto de la práctica y asigna id y
// timestamps. Los timestamps nunca se aceptan del caller.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) Create(ctx context.Context, rec CanonicalRecord) (Prescription, error) {
	if err := validate(rec); err != nil {
		return Prescription{}, err
	}

	now := s.now()
	p := build(rec)
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.repo.Create(ctx, p); err != nil {
		return Prescription{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Prescription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Prescription{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Prescription, error) {
	return s.repo.List(ctx, clampLimit(limit), max(offset, 0))
}

func (s *Service) Search(ctx context.Context, term string, limit int) ([]Prescription, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List(ctx, limit, 0)
	}
	return s.repo.Search(ctx, term, clampLimit(limit))
}

// Update reemplaza escalares y la secuencia completa de medicamentos.
// Nunca hace merge: lo que llega es lo que queda.
func (s *Service) Update(ctx context.Context, id string, rec CanonicalRecord) (Prescription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Prescription{}, ErrNotFound
	}
	if err := validate(rec); err != nil {
		return Prescription{}, err
	}

	p := build(rec)
	p.ID = id
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		return Prescription{}, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Stats devuelve el total y las recetas de los últimos 30 días.
type Stats struct {
	Total  int
	Recent int
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	recent, err := s.repo.CountSince(ctx, s.now().AddDate(0, 0, -30))
	if err != nil {
		return Stats{}, err
	}
	return Stats{Total: total, Recent: recent}, nil
}

func validate(rec CanonicalRecord) error {
	if rec.PatientName == "" {
		return fmt.Errorf("%w: patient name is required", ErrInvalidInput)
	}
	if rec.OwnerName == "" {
		return fmt.Errorf("%w: owner name is required", ErrInvalidInput)
	}
	if rec.PrescriptionDate == "" {
		return fmt.Errorf("%w: prescription date is required", ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01-02", rec.PrescriptionDate); err != nil {
		return fmt.Errorf("%w: prescription date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if len(rec.Medications) == 0 {
		return fmt.Errorf("%w: at least one medication is required", ErrInvalidInput)
	}
	for i, m := range rec.Medications {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("%w: medication %d: name is required", ErrInvalidInput, i)
		}
		if strings.TrimSpace(m.Instructions) == "" {
			return fmt.Errorf("%w: medication %d: instructions are required", ErrInvalidInput, i)
		}
	}
	return nil
}

func build(rec CanonicalRecord) Prescription {
	p := Prescription{
		PatientName:         rec.PatientName,
		OwnerName:           rec.OwnerName,
		PrescriptionDate:    rec.PrescriptionDate,
		VeterinarianName:    rec.VeterinarianName,
		VeterinarianLicense: rec.VeterinarianLicense,
		Notes:               rec.Notes,
	}
	if p.VeterinarianName == "" {
		p.VeterinarianName = DefaultVeterinarianName
	}
	if p.VeterinarianLicense == "" {
		p.VeterinarianLicense = DefaultVeterinarianLicense
	}

	p.Medications = make([]MedicationItem, 0, len(rec.Medications))
	for _, m := range rec.Medications {
		p.Medications = append(p.Medications, MedicationItem{
			Name:         strings.TrimSpace(m.Name),
			Instructions: strings.TrimSpace(m.Instructions),
		})
	}
	return p
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
