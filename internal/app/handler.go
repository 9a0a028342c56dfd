package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/smallwat3r/secretdrop/internal/domain"
	"github.com/smallwat3r/secretdrop/internal/utility"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// MessageService is implemented by service.Service.
type MessageService interface {
	Submit(ctx context.Context, in domain.SubmitInput) (string, error)
	Get(ctx context.Context, id, caller string) (*domain.ReadResult, error)
	GetFiles(ctx context.Context, id string) ([]domain.File, error)
	RegisterAttempt(ctx context.Context, id, caller string) (domain.AttemptResult, error)
	Delete(ctx context.Context, id, caller string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc        MessageService
	health     Pinger
	publicURL  string
	maxPayload int64
}

// NewHandler wires the HTTP surface to svc. publicURL, when set, is the
// base the returned links are built on; otherwise the request origin is
// used. health may be nil.
func NewHandler(svc MessageService, health Pinger, publicURL string, maxPayload int64) *Handler {
	if publicURL != "" && !strings.HasSuffix(publicURL, "/") {
		publicURL += "/"
	}
	if maxPayload <= 0 {
		maxPayload = domain.MaxPayloadSize
	}
	return &Handler{svc: svc, health: health, publicURL: publicURL, maxPayload: maxPayload}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			utility.WriteText(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
	}
	utility.WriteText(w, http.StatusOK, "ok")
}

func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPayload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utility.HttpError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		utility.HttpError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	msgValues, ok := r.PostForm["msg1"]
	if !ok {
		utility.HttpError(w, http.StatusBadRequest, "msg1 is required")
		return
	}
	if !utf8.ValidString(msgValues[0]) {
		utility.HttpError(w, http.StatusBadRequest, "msg1 must be valid UTF-8")
		return
	}
	expire, err := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("expire")), 10, 64)
	if err != nil {
		utility.HttpError(w, http.StatusBadRequest, "expire must be a number of seconds")
		return
	}
	_, destroy := r.PostForm["destroy"]

	var attachments domain.Attachments
	if r.MultipartForm != nil {
		attachments, err = readAttachments(r.MultipartForm.File["files"])
		if err != nil {
			utility.HttpError(w, http.StatusBadRequest, "unreadable file upload")
			return
		}
	}

	id, err := h.svc.Submit(r.Context(), domain.SubmitInput{
		Message:       msgValues[0],
		Attachments:   attachments,
		DestroyOnRead: destroy,
		ExpireSeconds: expire,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidExpiry):
			utility.HttpError(w, http.StatusBadRequest, "expire out of range")
		case errors.Is(err, domain.ErrInvalidBundle):
			utility.HttpError(w, http.StatusBadRequest, "files bundle is not valid JSON")
		case errors.Is(err, domain.ErrInvalidText):
			utility.HttpError(w, http.StatusBadRequest, "text is not valid UTF-8")
		default:
			slog.Error("failed to store record", "error", err)
			utility.HttpError(w, http.StatusInternalServerError, "failed to store message")
		}
		return
	}

	utility.WriteText(w, http.StatusOK, h.baseURL(r)+id)
}

// readAttachments turns the uploaded parts into the attachment union. A
// single part declared as application/json is the client's pre-encrypted
// bundle; anything else is a list of discrete files.
func readAttachments(headers []*multipart.FileHeader) (domain.Attachments, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	if len(headers) == 1 && isJSONPart(headers[0]) {
		b, err := readPart(headers[0])
		if err != nil {
			return nil, err
		}
		return domain.OpaqueBundle(b), nil
	}

	files := make(domain.DiscreteFiles, 0, len(headers))
	for _, fh := range headers {
		b, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, domain.Upload{Name: fh.Filename, Content: b})
	}
	return files, nil
}

func isJSONPart(fh *multipart.FileHeader) bool {
	ct := fh.Header.Get("Content-Type")
	return ct == "application/json" || strings.HasPrefix(ct, "application/json;")
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PostFormValue("id")
	if id == "" {
		utility.HttpError(w, http.StatusBadRequest, domain.MissingIDMessage)
		return
	}

	res, err := h.svc.Get(r.Context(), id, utility.ClientIP(r))
	if err != nil {
		slog.Error("failed to read record", "id", id, "error", err)
		utility.HttpError(w, http.StatusInternalServerError, "failed to read message")
		return
	}

	out := domain.ReadRes{
		Info:          res.Info,
		Msg:           res.Message,
		DestroyOnRead: res.DestroyOnRead,
		AttemptsLeft:  res.AttemptsLeft,
		ExpiresIn:     int64(res.ExpiresIn / time.Second),
	}
	if !res.ExpiresAt.IsZero() {
		out.ExpirationTS = res.ExpiresAt.Unix()
	}
	utility.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGetFiles(w http.ResponseWriter, r *http.Request) {
	id := r.PostFormValue("id")
	if id == "" {
		utility.HttpError(w, http.StatusBadRequest, domain.MissingIDMessage)
		return
	}

	files, err := h.svc.GetFiles(r.Context(), id)
	if err != nil {
		slog.Error("failed to read files", "id", id, "error", err)
		utility.HttpError(w, http.StatusInternalServerError, "failed to read files")
		return
	}
	utility.WriteJSON(w, http.StatusOK, domain.FilesRes{Files: files})
}

func (h *Handler) HandleFailAttempt(w http.ResponseWriter, r *http.Request) {
	id := r.PostFormValue("id")
	if id == "" {
		utility.HttpError(w, http.StatusBadRequest, domain.MissingIDMessage)
		return
	}

	res, err := h.svc.RegisterAttempt(r.Context(), id, utility.ClientIP(r))
	switch {
	case errors.Is(err, domain.ErrAttemptsExceeded):
		utility.WriteJSON(w, http.StatusTooManyRequests, domain.AttemptRes{
			AttemptsLeft: 0,
			Error:        domain.TooManyAttemptsError,
		})
	case err != nil:
		slog.Error("failed to register attempt", "id", id, "error", err)
		utility.HttpError(w, http.StatusInternalServerError, "failed to register attempt")
	default:
		utility.WriteJSON(w, http.StatusOK, domain.AttemptRes{AttemptsLeft: res.AttemptsLeft})
	}
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PostFormValue("id")

	err := h.svc.Delete(r.Context(), id, utility.ClientIP(r))
	switch {
	case err == nil:
		utility.WriteJSON(w, http.StatusOK, domain.DeleteRes{Success: true})
	case errors.Is(err, domain.ErrMissingParameter):
		utility.WriteJSON(w, http.StatusBadRequest, domain.DeleteRes{Error: domain.MissingIDMessage})
	case errors.Is(err, domain.ErrNotFound):
		utility.WriteJSON(w, http.StatusNotFound, domain.DeleteRes{Error: domain.DeleteNotFoundMsg})
	case errors.Is(err, domain.ErrRateLimited):
		utility.WriteJSON(w, http.StatusTooManyRequests, domain.DeleteRes{Error: domain.RateLimitedError})
	default:
		slog.Error("failed to delete record", "id", id, "error", err)
		utility.WriteJSON(w, http.StatusInternalServerError, domain.DeleteRes{Error: err.Error()})
	}
}
