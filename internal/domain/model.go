package domain

import (
	"fmt"
	"time"
)

// File is one attachment as stored and as handed back to viewers.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Size    int64  `json:"size"`
}

// Upload is a file as received from a submitter, before encoding.
type Upload struct {
	Name    string
	Content []byte
}

// Attachments is what a submitter sends alongside the message: either a
// list of discrete uploads or one opaque, already-serialized bundle.
type Attachments interface {
	attachments()
}

// DiscreteFiles are stored one entry per upload, base64-encoded.
type DiscreteFiles []Upload

// OpaqueBundle is a JSON document produced by the client (usually an
// encrypted file list). It is stored verbatim.
type OpaqueBundle []byte

func (DiscreteFiles) attachments() {}
func (OpaqueBundle) attachments()  {}

// SubmitInput carries everything needed to create a record.
type SubmitInput struct {
	Message       string
	Attachments   Attachments
	DestroyOnRead bool
	ExpireSeconds int64
}

// ReadResult is what a viewer gets back for an id. A missing record is a
// normal result with Found unset, not an error.
type ReadResult struct {
	Found         bool
	Info          string
	Message       string
	DestroyOnRead bool
	AttemptsLeft  int
	ExpiresIn     time.Duration
	ExpiresAt     time.Time
}

// AttemptResult reports the state of a caller's read-attempt counter.
type AttemptResult struct {
	AttemptsLeft int
	Exceeded     bool
}

// FormatInfo renders the human readable status line shown above a
// message. Remaining time is expressed in whole days.
func FormatInfo(ttl time.Duration, destroyOnRead bool, attemptsLeft int) string {
	info := fmt.Sprintf(infoExpiresFormat, int64(ttl/(24*time.Hour)))
	if destroyOnRead {
		info += infoDestroySuffix
	}
	return info + fmt.Sprintf(infoAttemptsFormat, attemptsLeft)
}

type ReadRes struct {
	Info          string `json:"info"`
	Msg           string `json:"msg"`
	DestroyOnRead bool   `json:"destroy_on_read"`
	AttemptsLeft  int    `json:"attempts_left"`
	ExpiresIn     int64  `json:"expires_in"`
	ExpirationTS  int64  `json:"expiration_ts"`
}

type FilesRes struct {
	Files []File `json:"files"`
}

type AttemptRes struct {
	AttemptsLeft int    `json:"attempts_left"`
	Error        string `json:"error,omitempty"`
}

type DeleteRes struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
