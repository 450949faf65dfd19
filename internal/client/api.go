package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"receta-veterinaria/internal/domain/prescriptions"
	"receta-veterinaria/internal/platform/httpclient"
)

// TransportError marca fallas en las que el servidor nunca respondió
// (conexión rechazada, timeout, DNS). Son las únicas que habilitan el
// fallback local; una respuesta 4xx/5xx llega al caller tal cual.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// API es el backend primario: el servidor de recetas por HTTP.
type API struct {
	http *httpclient.Client
}

func NewAPI(baseURL string, timeout time.Duration) (*API, error) {
	hc, err := httpclient.New(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	return &API{http: hc}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// BulkOutcome es lo que reporta el endpoint masivo del servidor.
type BulkOutcome struct {
	Imported int                       `json:"imported"`
	Total    int                       `json:"total"`
	Errors   []BulkRecordError         `json:"errors"`
	Results  []prescriptions.RawRecord `json:"results"`
}

type BulkRecordError struct {
	Index int                     `json:"index"`
	Error string                  `json:"error"`
	Data  prescriptions.RawRecord `json:"data"`
}

type StatsOutcome struct {
	Total  int    `json:"total_prescriptions"`
	Recent int    `json:"recent_prescriptions"`
	Period string `json:"period"`
}

func (a *API) List(ctx context.Context, limit, offset int) ([]prescriptions.RawRecord, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var out []prescriptions.RawRecord
	if err := a.getJSON(ctx, "list", "/api/recetas?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) Search(ctx context.Context, term string, limit int) ([]prescriptions.RawRecord, error) {
	q := url.Values{}
	q.Set("search", term)
	q.Set("limit", strconv.Itoa(limit))

	var out []prescriptions.RawRecord
	if err := a.getJSON(ctx, "search", "/api/recetas?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) Get(ctx context.Context, id string) (prescriptions.RawRecord, error) {
	var out prescriptions.RawRecord
	if err := a.getJSON(ctx, "get", "/api/recetas/"+url.PathEscape(id), &out); err != nil {
		return prescriptions.RawRecord{}, err
	}
	return out, nil
}

func (a *API) Create(ctx context.Context, raw prescriptions.RawRecord) (prescriptions.RawRecord, error) {
	var out prescriptions.RawRecord
	if err := a.doJSON(ctx, "create", http.MethodPost, "/api/recetas", raw, &out); err != nil {
		return prescriptions.RawRecord{}, err
	}
	return out, nil
}

func (a *API) Update(ctx context.Context, id string, raw prescriptions.RawRecord) (prescriptions.RawRecord, error) {
	var out prescriptions.RawRecord
	if err := a.doJSON(ctx, "update", http.MethodPut, "/api/recetas/"+url.PathEscape(id), raw, &out); err != nil {
		return prescriptions.RawRecord{}, err
	}
	return out, nil
}

func (a *API) Delete(ctx context.Context, id string) error {
	return a.doJSON(ctx, "delete", http.MethodDelete, "/api/recetas/"+url.PathEscape(id), nil, nil)
}

func (a *API) BulkImport(ctx context.Context, raws []prescriptions.RawRecord) (BulkOutcome, error) {
	in := struct {
		Prescriptions []prescriptions.RawRecord `json:"prescriptions"`
	}{Prescriptions: raws}

	var out BulkOutcome
	if err := a.doJSON(ctx, "bulk_import", http.MethodPost, "/api/recetas/bulk", in, &out); err != nil {
		return BulkOutcome{}, err
	}
	return out, nil
}

func (a *API) Stats(ctx context.Context) (StatsOutcome, error) {
	var out StatsOutcome
	if err := a.getJSON(ctx, "stats", "/api/recetas/stats", &out); err != nil {
		return StatsOutcome{}, err
	}
	return out, nil
}

func (a *API) getJSON(ctx context.Context, op, path string, out any) error {
	return a.doJSON(ctx, op, http.MethodGet, path, nil, out)
}

// doJSON ejecuta el request, desenvuelve el envelope {success, data} y
// clasifica el error: status HTTP => error de dominio, resto => transporte.
func (a *API) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var env envelope
	if err := a.http.DoJSON(ctx, method, path, in, &env); err != nil {
		return classify(op, err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", op, err)
	}
	return nil
}

func classify(op string, err error) error {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusNotFound:
			return prescriptions.ErrNotFound
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", prescriptions.ErrInvalidInput, serverError(httpErr.Body))
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return &TransportError{Op: op, Err: err}
}

// serverError rescata el campo error del envelope de una respuesta fallida.
func serverError(body string) string {
	var env envelope
	if json.Unmarshal([]byte(body), &env) == nil && env.Error != "" {
		return env.Error
	}
	return body
}
