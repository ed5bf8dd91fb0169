package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/open-tech-stack/mitic-web-sub002/internal/app"
	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service"
)

// maxBodySize bounds JSON request bodies / Borne la taille des corps JSON
const maxBodySize = 1 << 20

// Handler gives HTTP handlers access to the application container
// Handler donne aux handlers HTTP l'accès au conteneur applicatif
type Handler struct {
	container *app.Container
}

// NewHandler creates handler / Crée le handler
func NewHandler(container *app.Container) *Handler {
	return &Handler{container: container}
}

// errorBody is the JSON error payload / Corps JSON d'une erreur
type errorBody struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// writeError maps any error to the taxonomy and writes it / Convertit toute erreur vers la taxonomie et l'écrit
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.Normalize(err)
	if e == nil {
		e = apperr.New(apperr.CodeUnknown, "")
	}
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", GetRequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: e.Message, Code: string(e.Code), Details: e.Details})
}

// ErrorResponse writes a bare error with status / Écrit une erreur simple avec statut
func ErrorResponse(w http.ResponseWriter, message string, status int) {
	code := apperr.FromStatus(status)
	if message == "" {
		message = apperr.DefaultMessage(code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: message, Code: string(code)})
}

// jsonResponse writes data with 200 / Écrit les données avec 200
func jsonResponse(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("response encoding failed", "err", err)
	}
}

// decodeJSON limits and decodes the body, writing the error itself
// decodeJSON limite et décode le corps, en écrivant lui-même l'erreur
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, "Requête trop volumineuse", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, apperr.Invalid("Corps de requête JSON invalide"))
		return false
	}
	return true
}

// decodeBytes decodes an already read body / Décode un corps déjà lu
func decodeBytes(w http.ResponseWriter, r *http.Request, body []byte, dst any) bool {
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, r, apperr.Invalid("Corps de requête JSON invalide"))
		return false
	}
	return true
}

// pathID parses the {id} segment / Analyse le segment {id}
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, apperr.Invalid("Identifiant invalide"))
		return 0, false
	}
	return id, true
}

// queryInt64 reads an optional numeric filter / Lit un filtre numérique optionnel
func queryInt64(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, apperr.Invalid("Paramètre " + key + " invalide")
	}
	return n, nil
}

// pageFromQuery reads page and limit, invalid values fall back to defaults
// pageFromQuery lit page et limit, les valeurs invalides reprennent les défauts
func pageFromQuery(r *http.Request) service.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return service.NewPage(page, limit)
}

// Pagination describes a page of results / Décrit une page de résultats
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type pageResponse[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func writePage[T any](w http.ResponseWriter, items []T, total int, page service.Page) {
	if items == nil {
		items = []T{}
	}
	jsonResponse(w, pageResponse[T]{
		Items: items,
		Pagination: Pagination{
			Total:      total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: (total + page.Limit - 1) / page.Limit,
		},
	})
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	jsonResponse(w, listResponse[T]{Items: items})
}

func messageResponse(w http.ResponseWriter, message string) {
	jsonResponse(w, map[string]string{"message": message})
}

// crud serves get/create/update/delete of one resource / Sert lecture, création, mise à jour et suppression d'une ressource
type crud[T any] struct {
	get    func(ctx context.Context, id int64) (*T, error)
	create func(ctx context.Context, v *T) (*T, error)
	update func(ctx context.Context, id int64, v *T) (*T, error)
	remove func(ctx context.Context, id int64) error
}

func (c crud[T]) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := c.get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, v)
}

func (c crud[T]) Create(w http.ResponseWriter, r *http.Request) {
	var in T
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := c.create(r.Context(), &in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (c crud[T]) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in T
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := c.update(r.Context(), id, &in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, v)
}

func (c crud[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := c.remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
