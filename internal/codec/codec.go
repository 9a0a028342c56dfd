// Package codec converts between a record's logical content and the single
// value kept in the store.
//
// The stored form is an optional "destroy" prefix followed by a JSON
// envelope {"message": ..., "files": [...]}. Values written before files
// were supported are plain text and still decode, as a message with no
// files.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/smallwat3r/secretdrop/internal/domain"
	"github.com/valyala/bytebufferpool"
)

var destroyMarker = []byte(domain.DestroyMarker)

// Payload is the logical content of a record.
type Payload struct {
	Message       string
	Files         []domain.File
	DestroyOnRead bool
}

type envelope struct {
	Message *string         `json:"message"`
	Files   json.RawMessage `json:"files"`
}

// Encode serializes p. A nil file list is written as an empty array. The
// message and file names must be valid UTF-8, otherwise ErrInvalidText is
// returned rather than storing a lossy copy.
func Encode(p Payload) ([]byte, error) {
	files := p.Files
	if files == nil {
		files = []domain.File{}
	}
	for _, f := range files {
		if !utf8.ValidString(f.Name) {
			return nil, fmt.Errorf("%w: file name %q", domain.ErrInvalidText, f.Name)
		}
	}
	raw, err := marshal(files)
	if err != nil {
		return nil, fmt.Errorf("encode files: %w", err)
	}
	return encode(p.Message, raw, p.DestroyOnRead)
}

// EncodeBundle builds the envelope around a client-produced files document.
// The bundle must be valid JSON and is written byte for byte, whitespace
// included.
func EncodeBundle(message string, bundle []byte, destroyOnRead bool) ([]byte, error) {
	if !json.Valid(bundle) {
		return nil, domain.ErrInvalidBundle
	}
	return encode(message, bundle, destroyOnRead)
}

// encode writes {"message":...,"files":...} by hand so files lands in the
// output untouched.
func encode(message string, files []byte, destroyOnRead bool) ([]byte, error) {
	if !utf8.ValidString(message) {
		return nil, fmt.Errorf("%w: message", domain.ErrInvalidText)
	}
	msg, err := marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	if destroyOnRead {
		_, _ = bb.Write(destroyMarker)
	}
	_, _ = bb.WriteString(`{"message":`)
	_, _ = bb.Write(msg)
	_, _ = bb.WriteString(`,"files":`)
	_, _ = bb.Write(files)
	_ = bb.WriteByte('}')

	// the buffer goes back to the pool
	return bytes.Clone(bb.B), nil
}

func marshal(v any) (json.RawMessage, error) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	enc := json.NewEncoder(bb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.Clone(bytes.TrimSuffix(bb.B, []byte("\n"))), nil
}

// Decode never fails. A value that is not an envelope is read as a legacy
// plain message. Only one leading destroy marker is stripped, so a legacy
// message that happens to start with "destroy" is reported as
// destroy-on-read.
func Decode(value []byte) Payload {
	body, destroy := bytes.CutPrefix(value, destroyMarker)

	env, ok := parseEnvelope(body)
	if !ok {
		return Payload{Message: string(body), Files: []domain.File{}, DestroyOnRead: destroy}
	}
	return Payload{Message: *env.Message, Files: parseFiles(env.Files), DestroyOnRead: destroy}
}

// DecodeFiles returns only the attachments of a stored value, empty when
// there are none or they cannot be parsed.
func DecodeFiles(value []byte) []domain.File {
	body, _ := bytes.CutPrefix(value, destroyMarker)
	env, ok := parseEnvelope(body)
	if !ok {
		return []domain.File{}
	}
	return parseFiles(env.Files)
}

func parseEnvelope(body []byte) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Message == nil {
		return envelope{}, false
	}
	return env, true
}

func parseFiles(raw json.RawMessage) []domain.File {
	if len(raw) == 0 {
		return []domain.File{}
	}
	var files []domain.File
	if err := json.Unmarshal(raw, &files); err != nil || files == nil {
		return []domain.File{}
	}
	return files
}
