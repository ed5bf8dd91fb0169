// Package apperr defines the error taxonomy shared by services and handlers.
// Package apperr définit la taxonomie d'erreurs partagée par les services et les handlers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// Code classifies an error for clients / Classe une erreur pour les clients
type Code string

const (
	CodeNetwork      Code = "NETWORK_ERROR"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeServer       Code = "SERVER_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeUnknown      Code = "UNKNOWN_ERROR"
)

var defaultMessages = map[Code]string{
	CodeNetwork:      "Impossible de joindre le serveur. Vérifiez votre connexion réseau.",
	CodeValidation:   "Les données saisies sont invalides.",
	CodeServer:       "Une erreur interne est survenue. Veuillez réessayer plus tard.",
	CodeNotFound:     "La ressource demandée est introuvable.",
	CodeUnauthorized: "Vous n'êtes pas autorisé à effectuer cette action.",
	CodeUnknown:      "Une erreur inattendue est survenue.",
}

var defaultStatus = map[Code]int{
	CodeNetwork:      http.StatusServiceUnavailable,
	CodeValidation:   http.StatusBadRequest,
	CodeServer:       http.StatusInternalServerError,
	CodeNotFound:     http.StatusNotFound,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeUnknown:      http.StatusInternalServerError,
}

// DefaultMessage returns French message for code / Retourne le message français du code
func DefaultMessage(code Code) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return defaultMessages[CodeUnknown]
}

// Error is the application error carried up to the transport layer
// Error est l'erreur applicative remontée jusqu'à la couche transport
type Error struct {
	Code    Code
	Message string
	Status  int
	Details []string
	Err     error // cause, never exposed / cause, jamais exposée
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns status to send / Retourne le statut à envoyer
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if s, ok := defaultStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Is matches errors by code so errors.Is(err, apperr.ErrNotFound) works
// Is compare par code pour que errors.Is(err, apperr.ErrNotFound) fonctionne
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Status == 0 || t.Status == e.HTTPStatus())
}

// Sentinels for errors.Is checks / Sentinelles pour errors.Is
var (
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrValidation   = &Error{Code: CodeValidation}
	ErrConflict     = &Error{Code: CodeValidation, Status: http.StatusConflict}
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized}
	ErrForbidden    = &Error{Code: CodeUnauthorized, Status: http.StatusForbidden}
)

// New creates error with code and message / Crée une erreur avec code et message
func New(code Code, message string, details ...string) *Error {
	if message == "" {
		message = DefaultMessage(code)
	}
	return &Error{Code: code, Message: message, Details: details}
}

// Validation wraps accumulated validation messages / Enveloppe les messages de validation accumulés
func Validation(details []string) *Error {
	return &Error{Code: CodeValidation, Message: DefaultMessage(CodeValidation), Details: details}
}

// Invalid creates single-message validation error / Crée une erreur de validation à message unique
func Invalid(message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: []string{message}}
}

// NotFound creates not found error for resource / Crée une erreur introuvable pour la ressource
func NotFound(resource string) *Error {
	return &Error{Code: CodeNotFound, Message: resource + " introuvable"}
}

// Unauthorized creates 401 error / Crée une erreur 401
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentification requise"
	}
	return &Error{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

// Forbidden creates 403 error / Crée une erreur 403
func Forbidden(message string) *Error {
	if message == "" {
		message = DefaultMessage(CodeUnauthorized)
	}
	return &Error{Code: CodeUnauthorized, Message: message, Status: http.StatusForbidden}
}

// Conflict creates 409 validation error / Crée une erreur de validation 409
func Conflict(message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Status: http.StatusConflict, Details: []string{message}}
}

// Internal hides cause behind a server error / Cache la cause derrière une erreur serveur
func Internal(err error) *Error {
	return &Error{Code: CodeServer, Message: DefaultMessage(CodeServer), Err: err}
}

// FromStatus maps HTTP status to code / Associe un statut HTTP à un code
func FromStatus(status int) Code {
	switch {
	case status == 0:
		return CodeNetwork
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return CodeValidation
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CodeUnauthorized
	case status == http.StatusNotFound:
		return CodeNotFound
	case status >= 500:
		return CodeServer
	default:
		return CodeUnknown
	}
}

// Normalize converts any error into *Error / Convertit toute erreur en *Error
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, db.ErrNoRecord):
		return &Error{Code: CodeNotFound, Message: DefaultMessage(CodeNotFound), Err: err}
	case errors.Is(err, db.ErrDuplicate):
		return &Error{Code: CodeValidation, Message: "Cet enregistrement existe déjà.", Status: http.StatusConflict, Err: err}
	case errors.Is(err, db.ErrForeignKeyViolation):
		return &Error{Code: CodeValidation, Message: "Cette ressource est référencée par d'autres données.", Status: http.StatusConflict, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ECONNREFUSED):
		return &Error{Code: CodeNetwork, Message: DefaultMessage(CodeNetwork), Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Code: CodeNetwork, Message: DefaultMessage(CodeNetwork), Err: err}
	}

	return Internal(err)
}
