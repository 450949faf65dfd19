package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	mem "receta-veterinaria/internal/adapters/storage/memory"
	pg "receta-veterinaria/internal/adapters/storage/postgres"
	"receta-veterinaria/internal/domain/prescriptions"
	"receta-veterinaria/internal/middleware"
	"receta-veterinaria/internal/observability/metrics"
)

type Options struct {
	// Si viene pool, usa Postgres. Si no, in-memory (modo dev/tests).
	DB *pgxpool.Pool

	Logger zerolog.Logger

	// Opcional; nil desactiva los contadores (p.ej. en tests).
	Metrics *metrics.Metrics
}

func New(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	var repo prescriptions.Repository
	if opts.DB != nil {
		repo = pg.NewPrescriptionsRepo(opts.DB)
	} else {
		repo = mem.NewPrescriptionsRepo()
	}

	svc := prescriptions.NewService(repo)
	bulk := prescriptions.NewBulkImporter(svc)

	prescriptions.RegisterRoutes(r, svc, bulk, opts.Metrics, opts.Logger)

	return r
}
