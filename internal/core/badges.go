package core

import "strings"

// Tone is the color intent of a badge or text cell.
type Tone string

const (
	ToneNeutral Tone = "gray"
	ToneSuccess Tone = "green"
	ToneWarning Tone = "yellow"
	ToneDanger  Tone = "red"
	ToneInfo    Tone = "blue"
	ToneAccent  Tone = "purple"
	ToneOrange  Tone = "orange"
)

// statusTones is the order, payment and product state vocabulary.
var statusTones = map[string]Tone{
	"pending":      ToneWarning,
	"pendiente":    ToneWarning,
	"processing":   ToneInfo,
	"procesando":   ToneInfo,
	"en proceso":   ToneInfo,
	"confirmed":    ToneInfo,
	"confirmado":   ToneInfo,
	"shipped":      ToneAccent,
	"enviado":      ToneAccent,
	"delivered":    ToneSuccess,
	"entregado":    ToneSuccess,
	"completed":    ToneSuccess,
	"completado":   ToneSuccess,
	"paid":         ToneSuccess,
	"pagado":       ToneSuccess,
	"approved":     ToneSuccess,
	"aprobado":     ToneSuccess,
	"active":       ToneSuccess,
	"activo":       ToneSuccess,
	"available":    ToneSuccess,
	"disponible":   ToneSuccess,
	"cancelled":    ToneDanger,
	"canceled":     ToneDanger,
	"cancelado":    ToneDanger,
	"rejected":     ToneDanger,
	"rechazado":    ToneDanger,
	"failed":       ToneDanger,
	"fallido":      ToneDanger,
	"inactive":     ToneNeutral,
	"inactivo":     ToneNeutral,
	"out of stock": ToneDanger,
	"agotado":      ToneDanger,
	"low stock":    ToneOrange,
	"stock bajo":   ToneOrange,
	"refunded":     ToneAccent,
	"reembolsado":  ToneAccent,
	"partial":      ToneOrange,
	"parcial":      ToneOrange,
}

// StatusTone looks up the tone of a status token. Unknown tokens are neutral.
func StatusTone(status string) Tone {
	if t, ok := statusTones[strings.ToLower(strings.TrimSpace(status))]; ok {
		return t
	}
	return ToneNeutral
}
