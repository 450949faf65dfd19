// recetactl es el cliente de línea de comandos del servicio de recetas.
// Habla con el API remoto y, si el server no responde, degrada al
// archivo local igual que lo hacía el front con localStorage.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"receta-veterinaria/internal/adapters/storage/localfile"
	"receta-veterinaria/internal/client"
	"receta-veterinaria/internal/config"
	"receta-veterinaria/internal/domain/prescriptions"
	"receta-veterinaria/internal/platform/logger"
)

var (
	flagAPI   string
	flagLocal string
)

func main() {
	root := &cobra.Command{
		Use:           "recetactl",
		Short:         "Cliente del servicio de recetas veterinarias",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagAPI, "api", "", "URL base del API (default: API_BASE_URL)")
	root.PersistentFlags().StringVar(&flagLocal, "local", "", "ruta del archivo local (default: LOCAL_STORE_PATH)")

	root.AddCommand(
		listCmd(),
		getCmd(),
		saveCmd(),
		updateCmd(),
		deleteCmd(),
		searchCmd(),
		statsCmd(),
		migrateCmd(),
		stateCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newStore() (*client.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	baseURL := cfg.APIBaseURL
	if flagAPI != "" {
		baseURL = flagAPI
	}
	localPath := cfg.LocalStorePath
	if flagLocal != "" {
		localPath = flagLocal
	}

	api, err := client.NewAPI(baseURL, 10*time.Second)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    "recetactl",
	})

	return client.NewStore(client.Options{
		API:    api,
		Local:  localfile.New(localPath),
		Logger: log,
	})
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lista todas las recetas",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			recs, err := store.GetAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(recs)
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Muestra una receta",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			rec, err := store.GetOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [archivo.json]",
		Short: "Guarda una receta nueva (JSON por archivo o stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readRecord(args)
			if err != nil {
				return err
			}
			store, err := newStore()
			if err != nil {
				return err
			}
			saved, err := store.Save(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return printJSON(saved)
		},
	}
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> [archivo.json]",
		Short: "Actualiza una receta (reemplazo completo, solo contra el server)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readRecord(args[1:])
			if err != nil {
				return err
			}
			store, err := newStore()
			if err != nil {
				return err
			}
			updated, err := store.Update(cmd.Context(), args[0], raw)
			if err != nil {
				return err
			}
			return printJSON(updated)
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Borra una receta y sus medicamentos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("deleted", args[0])
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Busca por paciente, tutora o notas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			recs, err := store.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(recs)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Estadísticas del server (sin fallback)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			baseURL := cfg.APIBaseURL
			if flagAPI != "" {
				baseURL = flagAPI
			}
			api, err := client.NewAPI(baseURL, 10*time.Second)
			if err != nil {
				return err
			}
			st, err := api.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Estado de migración del almacenamiento local",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			fmt.Println(store.State())
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migra las recetas locales al server",
		Long: strings.TrimSpace(`
Lee todas las recetas del archivo local y las importa en el server vía el
endpoint masivo. El archivo local NO se borra hasta confirmar: repetir la
migración sin confirmar crea recetas duplicadas en el server.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}

			out, err := store.Migrate(cmd.Context())
			if err != nil {
				if errors.Is(err, client.ErrNoLocalRecords) {
					fmt.Println("no hay recetas locales para migrar")
					return nil
				}
				return err
			}

			fmt.Printf("se migraron %d de %d recetas (%d errores)\n",
				out.Imported, out.Total, len(out.Errors))
			for _, e := range out.Errors {
				fmt.Printf("  registro %d: %s\n", e.Index, e.Error)
			}

			if !yes {
				fmt.Print("¿Eliminar las recetas locales? Este paso es irreversible [y/N]: ")
				if !confirm(cmd.InOrStdin()) {
					fmt.Println("recetas locales conservadas")
					return nil
				}
			}

			if err := store.ConfirmMigrated(); err != nil {
				return err
			}
			fmt.Println("recetas locales eliminadas")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirma el borrado local sin preguntar")
	return cmd
}

func readRecord(args []string) (prescriptions.RawRecord, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return prescriptions.RawRecord{}, err
		}
		defer f.Close()
		r = f
	}

	var raw prescriptions.RawRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return prescriptions.RawRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return raw, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func confirm(in io.Reader) bool {
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(sc.Text()))
	return answer == "y" || answer == "yes" || answer == "s" || answer == "si"
}
