package core

// # Error Codes Reference
//
// Technical errors are mapped to short Spanish messages with a code that
// staff can quote when reporting a problem. Codes are grouped by category:
//
// # Upstream API Errors (API001-API099)
//
//	API001 - Session expired: the API rejected the session cookie
//	         Patterns: "upstream unauthorized"
//	API002 - Forbidden: the session lacks permission for the entity
//	         Patterns: "upstream forbidden"
//	API003 - Not found: the record or endpoint does not exist
//	         Patterns: "upstream not found"
//	API004 - Rejected: the API refused the submitted data
//	         Patterns: "upstream rejected"
//	API005 - Unavailable: the API answered with a server error
//	         Patterns: "upstream unavailable"
//	API006 - Unreachable: the API could not be contacted
//	         Patterns: "connection refused", "no such host", "connection reset"
//	API007 - Bad response: the API answered with malformed JSON
//	         Patterns: "decode upstream"
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Nothing to export: the filtered set is empty
//	EXP002 - Unsupported format
//	EXP003 - Too many exports running
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Unknown table
//	TBL002 - Action not allowed by the table config
//	TBL003 - Invalid table config
//	TBL004 - Record not found in the loaded data
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Configuration could not be loaded or validated
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//	REQ003 - Malformed request parameters or body
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unexpected error; check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns precede general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Upstream API
	{"upstream unauthorized", UserMessage{"La sesión expiró", "Inicia sesión nuevamente", "API001"}},
	{"upstream forbidden", UserMessage{"No tienes permiso para esta operación", "Solicita acceso a un administrador", "API002"}},
	{"upstream not found", UserMessage{"El registro no existe", "Actualiza la tabla e intenta de nuevo", "API003"}},
	{"upstream rejected", UserMessage{"Los datos enviados no son válidos", "Revisa los campos del formulario", "API004"}},
	{"upstream unavailable", UserMessage{"El servicio no está disponible", "Intenta de nuevo en unos minutos", "API005"}},
	{"connection refused", UserMessage{"No se pudo conectar con el servidor", "Verifica tu conexión e intenta de nuevo", "API006"}},
	{"no such host", UserMessage{"No se pudo conectar con el servidor", "Verifica tu conexión e intenta de nuevo", "API006"}},
	{"connection reset", UserMessage{"Se interrumpió la conexión con el servidor", "Intenta de nuevo", "API006"}},
	{"decode upstream", UserMessage{"El servidor respondió con datos inválidos", "Intenta de nuevo o contacta a soporte", "API007"}},

	// Export
	{"nothing to export", UserMessage{"No hay datos para exportar", "Ajusta la búsqueda e intenta de nuevo", "EXP001"}},
	{"unsupported export format", UserMessage{"Formato de exportación no soportado", "Usa CSV, Excel o PDF", "EXP002"}},
	{"too many concurrent exports", UserMessage{"Hay demasiadas exportaciones en curso", "Espera un momento e intenta de nuevo", "EXP003"}},

	// Tables
	{"unknown table", UserMessage{"Tabla desconocida", "Verifica el nombre de la tabla", "TBL001"}},
	{"action not allowed", UserMessage{"Acción no permitida en esta tabla", "Contacta a un administrador", "TBL002"}},
	{"invalid table config", UserMessage{"La configuración de la tabla no es válida", "Revisa la definición de columnas", "TBL003"}},
	{"record not found", UserMessage{"El registro no existe", "Actualiza la tabla e intenta de nuevo", "TBL004"}},

	// Configuration
	{"config validation", UserMessage{"La configuración no es válida", "Revisa las variables de entorno", "CFG001"}},
	{"config load", UserMessage{"No se pudo cargar la configuración", "Revisa las variables de entorno", "CFG001"}},

	// Request lifecycle
	{"context canceled", UserMessage{"La solicitud fue cancelada", "Intenta de nuevo", "REQ001"}},
	{"deadline exceeded", UserMessage{"La solicitud tardó demasiado", "Intenta de nuevo más tarde", "REQ002"}},
	{"timeout", UserMessage{"La solicitud tardó demasiado", "Intenta de nuevo más tarde", "REQ002"}},
	{"invalid request", UserMessage{"La solicitud no es válida", "Revisa los datos enviados", "REQ003"}},

	// Rate limiting
	{"rate limit", UserMessage{"Demasiadas solicitudes", "Espera un momento antes de intentar de nuevo", "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "Ocurrió un error inesperado",
	Action:  "Intenta de nuevo o contacta a soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message.
// A nil error maps to the zero UserMessage.
//
//	msg := MapError(fmt.Errorf("export: %w", ErrNothingToExport))
//	// msg.Code == "EXP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Código: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Código: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a specific pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err; nil stays nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
