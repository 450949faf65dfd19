package prescriptions

import (
	"context"
	"time"
)

// BulkError describe la falla de un registro individual dentro de un
// import masivo, con su posición y el registro original sin tocar.
type BulkError struct {
	Index    int       `json:"index"`
	Error    string    `json:"error"`
	Original RawRecord `json:"data"`
}

// BulkResult es el resultado de un import: siempre se devuelve completo,
// aunque fallen todos los registros. Invariante: Imported+len(Errors)==Total.
type BulkResult struct {
	Imported int            `json:"imported"`
	Total    int            `json:"total"`
	Results  []Prescription `json:"-"`
	Errors   []BulkError    `json:"errors"`
}

// BulkImporter procesa lotes de registros crudos (la migración desde el
// almacenamiento local del cliente). Cada registro se canonicaliza y se
// crea por separado: un registro malo nunca aborta el lote.
type BulkImporter struct {
	svc *Service
	now func() time.Time
}

func NewBulkImporter(svc *Service) *BulkImporter {
	return &BulkImporter{
		svc: svc,
		now: time.Now,
	}
}

// Import procesa los registros en orden de entrada. No deduplica:
// importar dos veces el mismo registro lógico crea dos recetas.
func (b *BulkImporter) Import(ctx context.Context, raws []RawRecord) BulkResult {
	res := BulkResult{
		Total:   len(raws),
		Results: make([]Prescription, 0, len(raws)),
		Errors:  make([]BulkError, 0),
	}

	for i, raw := range raws {
		rec := Canonicalize(raw)
		if rec.Notes == "" {
			rec.Notes = "Imported from local storage on " + LocalizeDate(b.now().Format("2006-01-02"))
		}

		p, err := b.svc.Create(ctx, rec)
		if err != nil {
			res.Errors = append(res.Errors, BulkError{
				Index:    i,
				Error:    err.Error(),
				Original: raw,
			})
			continue
		}

		res.Results = append(res.Results, p)
		res.Imported++
	}

	return res
}
