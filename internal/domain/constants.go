package domain

import "time"

const (
	// DestroyMarker is prepended to a stored payload to flag it as
	// destroy-on-read. It is the only place the flag is recorded.
	DestroyMarker = "destroy"

	// DefaultIDLength is the length of generated record ids.
	DefaultIDLength = 10

	// DefaultIDAlphabet is the symbol set ids are drawn from.
	DefaultIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// MaxReadAttempts is the number of counted read attempts a caller gets
	// per record before the record is purged.
	MaxReadAttempts = 5

	// ReadAttemptWindow bounds how long read attempts are remembered.
	ReadAttemptWindow = time.Hour

	// MaxDeleteAttempts is the number of delete calls a caller may make
	// against one id per window.
	MaxDeleteAttempts = 3

	// DeleteAttemptWindow bounds how long delete attempts are remembered.
	DeleteAttemptWindow = time.Minute

	// MaxPayloadSize is the default ceiling for a whole submission (10 MB).
	MaxPayloadSize = 10 << 20

	// MaxExpireSeconds is the longest TTL a caller may ask for (30 days).
	MaxExpireSeconds = 30 * 24 * 60 * 60
)

// Strings shown to the browser client. The client matches on some of
// them, so they are part of the wire contract.
const (
	NotFoundMessage      = "No existe el mensaje. Fue destruido o expiró."
	MissingIDMessage     = "Falta el parámetro id"
	DeleteNotFoundMsg    = "No se encontró el mensaje"
	TooManyAttemptsError = "too_many_attempts"
	RateLimitedError     = "rate_limited"

	infoExpiresFormat  = "&nbsp; Expira en %d d&iacute;a/s"
	infoDestroySuffix  = ", destruir al leer"
	infoAttemptsFormat = ", Intentos restantes: %d"
)
