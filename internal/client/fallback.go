package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"receta-veterinaria/internal/adapters/storage/localfile"
	"receta-veterinaria/internal/domain/prescriptions"
	"receta-veterinaria/internal/observability/metrics"
)

// MigrationState es el estado del store secundario respecto del primario.
// Es por despliegue, no por registro.
type MigrationState string

const (
	StateClean            MigrationState = "clean"
	StatePendingMigration MigrationState = "pending-migration"
	StateMigrating        MigrationState = "migrating"
	StateMigrated         MigrationState = "migrated"
)

var (
	// ErrNoLocalRecords: migrate sin nada que migrar.
	ErrNoLocalRecords = errors.New("no local records to migrate")

	// ErrMigrationInFlight: hay una migración corriendo en este proceso.
	ErrMigrationInFlight = errors.New("migration already in flight")
)

// Store es el store lógico de recetas sobre dos backends físicos:
// el API remoto (primario) y el archivo local (secundario). El contrato
// por operación es asimétrico a propósito:
//
//	lecturas  -> degradan al local ante falla de transporte
//	save      -> degrada al local, asignando id y timestamp propios
//	update    -> NUNCA degrada: el error de transporte se propaga, una
//	             edición parcial local divergiría en silencio del server
//	delete    -> degrada al local
//
// Un circuit breaker delante del primario corta el martilleo cuando el
// server lleva varias fallas seguidas; circuito abierto degrada igual
// que cualquier otra falla de transporte.
type Store struct {
	api     *API
	local   *localfile.Store
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.Mutex
	state MigrationState
}

type Options struct {
	API     *API
	Local   *localfile.Store
	Logger  zerolog.Logger
	Metrics *metrics.Metrics // opcional
}

// NewStore arma el store y detecta al arranque si el secundario acumuló
// registros (estado pending-migration).
func NewStore(opts Options) (*Store, error) {
	if opts.API == nil || opts.Local == nil {
		return nil, errors.New("client: api and local store required")
	}

	s := &Store{
		api:     opts.API,
		local:   opts.Local,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     time.Now,
		state:   StateClean,
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "primary-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Un 404 o 400 no es un server caído: no abre el circuito.
			return err == nil || !isTransport(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	n, err := opts.Local.Count()
	if err != nil {
		return nil, fmt.Errorf("client: inspect local store: %w", err)
	}
	if n > 0 {
		s.state = StatePendingMigration
	}

	return s, nil
}

// State devuelve el estado actual de migración.
func (s *Store) State() MigrationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) GetAll(ctx context.Context) ([]prescriptions.RawRecord, error) {
	v, err := s.primary(func() (any, error) {
		return s.api.List(ctx, 100, 0)
	})
	if err == nil {
		return v.([]prescriptions.RawRecord), nil
	}
	if !isTransport(err) {
		return nil, err
	}

	s.degraded("get_all", err)
	return s.local.Load()
}

func (s *Store) GetOne(ctx context.Context, id string) (prescriptions.RawRecord, error) {
	v, err := s.primary(func() (any, error) {
		return s.api.Get(ctx, id)
	})
	if err == nil {
		return v.(prescriptions.RawRecord), nil
	}
	if !isTransport(err) {
		return prescriptions.RawRecord{}, err
	}

	s.degraded("get_one", err)
	return s.local.Get(id)
}

func (s *Store) Search(ctx context.Context, term string) ([]prescriptions.RawRecord, error) {
	v, err := s.primary(func() (any, error) {
		return s.api.Search(ctx, term, 20)
	})
	if err == nil {
		return v.([]prescriptions.RawRecord), nil
	}
	if !isTransport(err) {
		return nil, err
	}

	s.degraded("search", err)
	return s.local.Search(term)
}

// Save intenta el primario (el server asigna id y timestamps). Ante falla
// de transporte escribe al secundario asignando identificador y fecha de
// guardado locales, porque el secundario no puede generar ids de server.
func (s *Store) Save(ctx context.Context, raw prescriptions.RawRecord) (prescriptions.RawRecord, error) {
	v, err := s.primary(func() (any, error) {
		return s.api.Create(ctx, raw)
	})
	if err == nil {
		return v.(prescriptions.RawRecord), nil
	}
	if !isTransport(err) {
		return prescriptions.RawRecord{}, err
	}

	s.degraded("save", err)

	raw.ID = "local-" + uuid.NewString()
	raw.FechaGuardado = s.now().UTC().Format(time.RFC3339)
	if err := s.local.Append(raw); err != nil {
		return prescriptions.RawRecord{}, err
	}

	s.mu.Lock()
	if s.state == StateClean || s.state == StateMigrated {
		s.state = StatePendingMigration
	}
	s.mu.Unlock()

	return raw, nil
}

// Update no tiene camino secundario: ante falla de transporte el error
// se propaga al caller en vez de degradar.
func (s *Store) Update(ctx context.Context, id string, raw prescriptions.RawRecord) (prescriptions.RawRecord, error) {
	v, err := s.primary(func() (any, error) {
		return s.api.Update(ctx, id, raw)
	})
	if err != nil {
		if isTransport(err) {
			s.log.Error().Err(err).Str("id", id).
				Msg("update failed: primary unreachable, not degrading")
		}
		return prescriptions.RawRecord{}, err
	}
	return v.(prescriptions.RawRecord), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.primary(func() (any, error) {
		return nil, s.api.Delete(ctx, id)
	})
	if err == nil {
		return nil
	}
	if !isTransport(err) {
		return err
	}

	s.degraded("delete", err)

	existed, err := s.local.Delete(id)
	if err != nil {
		return err
	}
	if !existed {
		return prescriptions.ErrNotFound
	}
	return nil
}

// Migrate lee todo el secundario y lo importa en el primario vía el
// endpoint masivo. NO borra nada: el drenado del secundario es un paso
// aparte (ConfirmMigrated) que exige confirmación explícita del operador.
// Repetir Migrate sin confirmar crea duplicados; no hay clave natural
// para deduplicar.
func (s *Store) Migrate(ctx context.Context) (BulkOutcome, error) {
	s.mu.Lock()
	if s.state == StateMigrating {
		s.mu.Unlock()
		return BulkOutcome{}, ErrMigrationInFlight
	}
	prev := s.state
	s.state = StateMigrating
	s.mu.Unlock()

	restore := func(st MigrationState) {
		s.mu.Lock()
		s.state = st
		s.mu.Unlock()
	}

	recs, err := s.local.Load()
	if err != nil {
		restore(prev)
		return BulkOutcome{}, err
	}
	if len(recs) == 0 {
		restore(prev)
		return BulkOutcome{}, ErrNoLocalRecords
	}

	s.log.Info().Int("total", len(recs)).Msg("migrating local records to primary")

	out, err := s.api.BulkImport(ctx, recs)
	if err != nil {
		// Falla sin pérdida: el secundario queda intacto.
		restore(StatePendingMigration)
		return BulkOutcome{}, err
	}

	s.log.Info().
		Int("imported", out.Imported).
		Int("total", out.Total).
		Int("errors", len(out.Errors)).
		Msg("migration finished, local store NOT cleared yet")

	// Los datos siguen en el secundario hasta la confirmación.
	restore(StatePendingMigration)
	return out, nil
}

// ConfirmMigrated drena el secundario. Destructivo e irreversible: solo
// debe llamarse después de que el operador revisó el resultado de Migrate.
func (s *Store) ConfirmMigrated() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateMigrating {
		return ErrMigrationInFlight
	}
	if err := s.local.Clear(); err != nil {
		return err
	}
	s.state = StateMigrated
	return nil
}

// primary ejecuta la llamada a través del breaker. Circuito abierto se
// reporta como falla de transporte.
func (s *Store) primary(fn func() (any, error)) (any, error) {
	v, err := s.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Op: "circuit", Err: err}
		}
		return nil, err
	}
	return v, nil
}

func (s *Store) degraded(op string, err error) {
	s.log.Warn().Err(err).Str("operation", op).
		Msg("primary unavailable, falling back to local store")
	if s.metrics != nil {
		s.metrics.FallbackActivations.WithLabelValues(op).Inc()
	}
}

func isTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
