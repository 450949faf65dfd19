package prescriptions

import (
	"fmt"
	"strings"
)

// Scheme indica con qué juego de claves llegó un registro externo.
// El front original manda claves cortas en español (paciente, tutora...);
// clientes nuevos mandan las claves largas canónicas (patient_name...).
type Scheme string

const (
	SchemeCanonical Scheme = "canonical"
	SchemeLegacy    Scheme = "legacy"
)

// RawRecord es una receta tal como llega del exterior: puede traer
// cualquiera de los dos juegos de claves, o ambos mezclados.
type RawRecord struct {
	ID string `json:"id,omitempty"`

	Paciente    string `json:"paciente,omitempty"`
	PatientName string `json:"patient_name,omitempty"`

	Tutora    string `json:"tutora,omitempty"`
	OwnerName string `json:"owner_name,omitempty"`

	Fecha            string `json:"fecha,omitempty"`
	PrescriptionDate string `json:"prescription_date,omitempty"`

	Veterinario      string `json:"veterinario,omitempty"`
	VeterinarianName string `json:"veterinarian_name,omitempty"`

	Licencia            string `json:"licencia,omitempty"`
	VeterinarianLicense string `json:"veterinarian_license,omitempty"`

	Notas string `json:"notas,omitempty"`
	Notes string `json:"notes,omitempty"`

	Medicamentos []RawMedication `json:"medicamentos,omitempty"`
	Medications  []RawMedication `json:"medications,omitempty"`

	// Solo eco: el front los manda de vuelta en registros guardados
	// localmente, el servidor nunca los acepta como timestamps propios.
	FechaGuardado string `json:"fechaGuardado,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type RawMedication struct {
	Nombre         string `json:"nombre,omitempty"`
	MedicationName string `json:"medication_name,omitempty"`

	Indicacion   string `json:"indicacion,omitempty"`
	Instructions string `json:"dosage_instructions,omitempty"`
}

// CanonicalRecord es el resultado de resolver sinónimos: una sola clave
// por campo lógico y fecha en ISO. No valida obligatoriedad; eso es
// trabajo del borde HTTP / del service.
type CanonicalRecord struct {
	PatientName         string
	OwnerName           string
	PrescriptionDate    string
	VeterinarianName    string
	VeterinarianLicense string
	Notes               string
	Medications         []MedicationItem

	// Scheme recuerda cómo llegó el registro, para poder responder
	// en la misma forma (compatibilidad con el front viejo).
	Scheme Scheme
}

// Canonicalize resuelve los sinónimos de un registro externo.
// Regla fija por campo: gana la clave canónica cuando ambas vienen con
// valor; la legacy solo rellena huecos. No muta su entrada y es
// idempotente: canonicalizar un registro ya canónico no cambia nada.
func Canonicalize(raw RawRecord) CanonicalRecord {
	rec := CanonicalRecord{
		PatientName:         firstNonEmpty(raw.PatientName, raw.Paciente),
		OwnerName:           firstNonEmpty(raw.OwnerName, raw.Tutora),
		PrescriptionDate:    NormalizeDate(firstNonEmpty(raw.PrescriptionDate, raw.Fecha)),
		VeterinarianName:    firstNonEmpty(raw.VeterinarianName, raw.Veterinario),
		VeterinarianLicense: firstNonEmpty(raw.VeterinarianLicense, raw.Licencia),
		Notes:               firstNonEmpty(raw.Notes, raw.Notas),
		Scheme:              detectScheme(raw),
	}

	meds := raw.Medications
	if len(meds) == 0 {
		meds = raw.Medicamentos
	}
	if len(meds) > 0 {
		rec.Medications = make([]MedicationItem, 0, len(meds))
		for _, m := range meds {
			rec.Medications = append(rec.Medications, MedicationItem{
				Name:         firstNonEmpty(m.MedicationName, m.Nombre),
				Instructions: firstNonEmpty(m.Instructions, m.Indicacion),
			})
		}
	}

	return rec
}

// Raw devuelve el registro en forma canónica externa (claves largas).
// Útil para reenviar al servidor lo que el cliente guardó localmente.
func (c CanonicalRecord) Raw() RawRecord {
	out := RawRecord{
		PatientName:         c.PatientName,
		OwnerName:           c.OwnerName,
		PrescriptionDate:    c.PrescriptionDate,
		VeterinarianName:    c.VeterinarianName,
		VeterinarianLicense: c.VeterinarianLicense,
		Notes:               c.Notes,
	}
	for _, m := range c.Medications {
		out.Medications = append(out.Medications, RawMedication{
			MedicationName: m.Name,
			Instructions:   m.Instructions,
		})
	}
	return out
}

// NormalizeDate acepta YYYY-MM-DD o D/M/YYYY (separador slash, con o sin
// ceros) y devuelve siempre ISO. Cualquier otra cosa pasa tal cual,
// recortada; la validación de fecha es del borde.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		return s
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s
	}

	day, month, year := parts[0], parts[1], parts[2]
	return fmt.Sprintf("%s-%s-%s", year, pad2(month), pad2(day))
}

// LocalizeDate convierte una fecha ISO a DD/MM/YYYY para mostrar.
// Nunca se usa para almacenar.
func LocalizeDate(iso string) string {
	parts := strings.Split(strings.TrimSpace(iso), "-")
	if len(parts) != 3 {
		return iso
	}
	return fmt.Sprintf("%s/%s/%s", pad2(parts[2]), pad2(parts[1]), parts[0])
}

func detectScheme(raw RawRecord) Scheme {
	if raw.Paciente != "" || raw.Tutora != "" || raw.Fecha != "" ||
		raw.Notas != "" || raw.Veterinario != "" || raw.Licencia != "" ||
		len(raw.Medicamentos) > 0 {
		return SchemeLegacy
	}
	return SchemeCanonical
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
