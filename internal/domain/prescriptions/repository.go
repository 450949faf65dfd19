package prescriptions

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound lo devuelven todos los adapters cuando el id no existe.
var ErrNotFound = errors.New("prescription not found")

// Repository es el contrato del agregado: cada operación de escritura es
// todo-o-nada sobre la receta y sus items.
type Repository interface {
	Create(ctx context.Context, p Prescription) error
	GetByID(ctx context.Context, id string) (Prescription, error)

	// List devuelve recetas ordenadas por creación descendente.
	List(ctx context.Context, limit, offset int) ([]Prescription, error)

	// Search busca term como substring (case-insensitive) en paciente,
	// tutora o notas, ordenado por creación descendente.
	Search(ctx context.Context, term string, limit int) ([]Prescription, error)

	// Update reemplaza los escalares y la secuencia completa de items.
	// Falla con ErrNotFound antes de tocar items si el id no existe.
	Update(ctx context.Context, p Prescription) error

	// Delete borra receta e items en cascada. Borrar un id inexistente
	// no es error: devuelve existed=false.
	Delete(ctx context.Context, id string) (existed bool, err error)

	Count(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}
