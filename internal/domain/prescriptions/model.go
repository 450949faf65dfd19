package prescriptions

import "time"

// Identidad por defecto de la práctica, usada cuando el registro
// no trae veterinario.
const (
	DefaultVeterinarianName    = "Dr. Camilo Vergara"
	DefaultVeterinarianLicense = "17.622.685-4"
)

// MedicationItem es una línea de medicamento dentro de una receta.
// No tiene identidad propia fuera de su receta: se reemplaza completa
// en cada update y desaparece con el delete del padre.
type MedicationItem struct {
	Name         string
	Instructions string
}

// Prescription representa una receta veterinaria junto con su secuencia
// ordenada de medicamentos. Es la unidad de escritura: parent e items se
// persisten y se borran juntos, nunca por separado.
type Prescription struct {
	ID string

	PatientName      string
	OwnerName        string
	PrescriptionDate string // ISO YYYY-MM-DD

	VeterinarianName    string
	VeterinarianLicense string

	Notes string

	Medications []MedicationItem

	CreatedAt time.Time
	UpdatedAt time.Time
}
