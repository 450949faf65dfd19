package prescriptions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"receta-veterinaria/internal/observability/metrics"
)

// RegisterRoutes monta el CRUD de recetas bajo /api/recetas, más el
// endpoint masivo de migración y las estadísticas.
func RegisterRoutes(r chi.Router, svc *Service, bulk *BulkImporter, m *metrics.Metrics, log zerolog.Logger) {
	r.Route("/api/recetas", func(rr chi.Router) {
		rr.Get("/", listHandler(svc, log))
		rr.Post("/", createHandler(svc, m, log))
		rr.Post("/bulk", bulkHandler(bulk, m, log))
		rr.Get("/stats", statsHandler(svc))

		rr.Get("/{id}", getHandler(svc))
		rr.Put("/{id}", updateHandler(svc, log))
		rr.Delete("/{id}", deleteHandler(svc, m, log))
	})
}

// Envelope que espera el front original: {success, data, error, message}.
type apiResponse struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

type pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// Forma legacy (claves cortas en español), la que el front viejo guardaba
// en localStorage y espera de vuelta.
type legacyPrescription struct {
	ID            string             `json:"id"`
	Paciente      string             `json:"paciente"`
	Tutora        string             `json:"tutora"`
	Fecha         string             `json:"fecha"`
	Medicamentos  []legacyMedication `json:"medicamentos"`
	FechaGuardado time.Time          `json:"fechaGuardado"`
	Veterinario   string             `json:"veterinario"`
	Licencia      string             `json:"licencia"`
	Notas         string             `json:"notas"`
}

type legacyMedication struct {
	Nombre     string `json:"nombre"`
	Indicacion string `json:"indicacion"`
}

// Forma canónica (claves largas), la preferida para clientes nuevos.
type canonicalPrescription struct {
	ID                  string                `json:"id"`
	PatientName         string                `json:"patient_name"`
	OwnerName           string                `json:"owner_name"`
	PrescriptionDate    string                `json:"prescription_date"`
	VeterinarianName    string                `json:"veterinarian_name"`
	VeterinarianLicense string                `json:"veterinarian_license"`
	Notes               string                `json:"notes"`
	Medications         []canonicalMedication `json:"medications"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

type canonicalMedication struct {
	MedicationName     string `json:"medication_name"`
	DosageInstructions string `json:"dosage_instructions"`
}

func render(p Prescription, scheme Scheme) any {
	if scheme == SchemeLegacy {
		out := legacyPrescription{
			ID:            p.ID,
			Paciente:      p.PatientName,
			Tutora:        p.OwnerName,
			Fecha:         p.PrescriptionDate,
			Medicamentos:  make([]legacyMedication, 0, len(p.Medications)),
			FechaGuardado: p.CreatedAt,
			Veterinario:   p.VeterinarianName,
			Licencia:      p.VeterinarianLicense,
			Notas:         p.Notes,
		}
		for _, m := range p.Medications {
			out.Medicamentos = append(out.Medicamentos, legacyMedication{
				Nombre:     m.Name,
				Indicacion: m.Instructions,
			})
		}
		return out
	}

	out := canonicalPrescription{
		ID:                  p.ID,
		PatientName:         p.PatientName,
		OwnerName:           p.OwnerName,
		PrescriptionDate:    p.PrescriptionDate,
		VeterinarianName:    p.VeterinarianName,
		VeterinarianLicense: p.VeterinarianLicense,
		Notes:               p.Notes,
		Medications:         make([]canonicalMedication, 0, len(p.Medications)),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	for _, m := range p.Medications {
		out.Medications = append(out.Medications, canonicalMedication{
			MedicationName:     m.Name,
			DosageInstructions: m.Instructions,
		})
	}
	return out
}

func renderMany(items []Prescription, scheme Scheme) []any {
	out := make([]any, 0, len(items))
	for _, p := range items {
		out = append(out, render(p, scheme))
	}
	return out
}

// querySchemeFor decide la forma de salida en lecturas: canónica por
// defecto, legacy con ?formato=legado (o el alias en inglés).
func queryScheme(r *http.Request) Scheme {
	switch r.URL.Query().Get("formato") {
	case "legado", "legacy":
		return SchemeLegacy
	}
	return SchemeCanonical
}

func listHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := queryInt(q.Get("limit"), 20)
		offset := queryInt(q.Get("offset"), 0)
		search := q.Get("search")

		var (
			items []Prescription
			err   error
		)
		if search != "" {
			items, err = svc.Search(r.Context(), search, limit)
		} else {
			items, err = svc.List(r.Context(), limit, offset)
		}
		if err != nil {
			log.Error().Err(err).Msg("list prescriptions")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		total, err := svc.Count(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("count prescriptions")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, apiResponse{
			Success: true,
			Data:    renderMany(items, queryScheme(r)),
			Pagination: &pagination{
				Total:   total,
				Limit:   limit,
				Offset:  offset,
				HasMore: offset+limit < total,
			},
		})
	}
}

func getHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "Prescription not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: render(p, queryScheme(r))})
	}
}

func createHandler(svc *Service, m *metrics.Metrics, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw RawRecord
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		rec := Canonicalize(raw)

		log.Info().
			Str("patient", rec.PatientName).
			Str("owner", rec.OwnerName).
			Int("medications", len(rec.Medications)).
			Msg("creating prescription")

		p, err := svc.Create(r.Context(), rec)
		if err != nil {
			writeServiceError(w, log, err)
			return
		}

		if m != nil {
			m.PrescriptionsCreated.Inc()
		}

		writeJSON(w, http.StatusCreated, apiResponse{
			Success: true,
			Data:    render(p, rec.Scheme),
			Message: "Prescription created successfully",
		})
	}
}

func updateHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var raw RawRecord
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		rec := Canonicalize(raw)

		log.Info().
			Str("id", id).
			Str("patient", rec.PatientName).
			Msg("updating prescription")

		p, err := svc.Update(r.Context(), id, rec)
		if err != nil {
			writeServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, apiResponse{
			Success: true,
			Data:    render(p, rec.Scheme),
			Message: "Prescription updated successfully",
		})
	}
}

func deleteHandler(svc *Service, m *metrics.Metrics, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		log.Info().Str("id", id).Msg("deleting prescription")

		existed, err := svc.Delete(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !existed {
			writeError(w, http.StatusNotFound, "Prescription not found")
			return
		}

		if m != nil {
			m.PrescriptionsDeleted.Inc()
		}

		writeJSON(w, http.StatusOK, apiResponse{
			Success: true,
			Message: "Prescription deleted successfully",
		})
	}
}

func statsHandler(svc *Service) http.HandlerFunc {
	type statsResponse struct {
		Total  int    `json:"total_prescriptions"`
		Recent int    `json:"recent_prescriptions"`
		Period string `json:"period"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Stats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{
			Success: true,
			Data: statsResponse{
				Total:  st.Total,
				Recent: st.Recent,
				Period: "last_30_days",
			},
		})
	}
}

func bulkHandler(bulk *BulkImporter, m *metrics.Metrics, log zerolog.Logger) http.HandlerFunc {
	type bulkRequest struct {
		Prescriptions []RawRecord `json:"prescriptions"`
	}
	type bulkResponse struct {
		Imported int         `json:"imported"`
		Total    int         `json:"total"`
		Errors   []BulkError `json:"errors"`
		Results  []any       `json:"results"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if len(req.Prescriptions) == 0 {
			writeError(w, http.StatusBadRequest, "Invalid prescriptions data")
			return
		}

		log.Info().Int("total", len(req.Prescriptions)).Msg("bulk importing prescriptions")

		res := bulk.Import(r.Context(), req.Prescriptions)

		if m != nil {
			m.BulkImported.Add(float64(res.Imported))
			m.BulkFailed.Add(float64(len(res.Errors)))
		}

		writeJSON(w, http.StatusCreated, apiResponse{
			Success: true,
			Data: bulkResponse{
				Imported: res.Imported,
				Total:    res.Total,
				Errors:   res.Errors,
				Results:  renderMany(res.Results, SchemeLegacy),
			},
			Message: "Bulk import finished",
		})
	}
}

func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Prescription not found")
	default:
		log.Error().Err(err).Msg("prescription write failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiResponse{Success: false, Error: msg})
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
