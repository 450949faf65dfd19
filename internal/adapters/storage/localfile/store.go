// Package localfile es el almacenamiento secundario del cliente: el
// equivalente del localStorage del front original. Todo el contenido es
// un único documento JSON (un array de registros crudos) en un archivo;
// cada mutación lo reescribe completo con rename atómico.
//
// El mutex cubre solo a este proceso. Dos procesos escribiendo el mismo
// archivo pueden pisarse, igual que dos pestañas sobre localStorage.
package localfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"receta-veterinaria/internal/domain/prescriptions"
)

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load devuelve todos los registros. Archivo inexistente == vacío.
func (s *Store) Load() ([]prescriptions.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Append agrega un registro al final del documento.
func (s *Store) Append(rec prescriptions.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return err
	}
	return s.write(append(recs, rec))
}

// Get busca un registro por id.
func (s *Store) Get(id string) (prescriptions.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return prescriptions.RawRecord{}, err
	}
	for _, rec := range recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return prescriptions.RawRecord{}, prescriptions.ErrNotFound
}

// Delete quita el registro con ese id. Devuelve si existía.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return false, err
	}

	kept := make([]prescriptions.RawRecord, 0, len(recs))
	existed := false
	for _, rec := range recs {
		if rec.ID == id {
			existed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !existed {
		return false, nil
	}
	return true, s.write(kept)
}

// Search filtra por substring case-insensitive en paciente, tutora y
// notas, mirando ambos juegos de claves.
func (s *Store) Search(term string) ([]prescriptions.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(term))

	out := make([]prescriptions.RawRecord, 0)
	for _, rec := range recs {
		hay := strings.ToLower(strings.Join([]string{
			rec.Paciente, rec.PatientName,
			rec.Tutora, rec.OwnerName,
			rec.Notas, rec.Notes,
		}, " "))
		if strings.Contains(hay, needle) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Clear borra el archivo completo. Es el paso destructivo e irreversible
// del final de la migración: solo se llama tras confirmación explícita.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear local store: %w", err)
	}
	return nil
}

func (s *Store) load() ([]prescriptions.RawRecord, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []prescriptions.RawRecord{}, nil
		}
		return nil, fmt.Errorf("read local store: %w", err)
	}
	if len(b) == 0 {
		return []prescriptions.RawRecord{}, nil
	}

	var recs []prescriptions.RawRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode local store: %w", err)
	}
	return recs, nil
}

func (s *Store) write(recs []prescriptions.RawRecord) error {
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local store: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create local store dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write local store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace local store: %w", err)
	}
	return nil
}
