package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallwat3r/secretdrop/internal/domain"
	"github.com/smallwat3r/secretdrop/internal/ratelimit"
	"github.com/smallwat3r/secretdrop/internal/service"
	"github.com/smallwat3r/secretdrop/internal/store"
	"github.com/smallwat3r/secretdrop/internal/utility"
)

type mockMessageService struct {
	SubmitFunc          func(ctx context.Context, in domain.SubmitInput) (string, error)
	GetFunc             func(ctx context.Context, id, caller string) (*domain.ReadResult, error)
	GetFilesFunc        func(ctx context.Context, id string) ([]domain.File, error)
	RegisterAttemptFunc func(ctx context.Context, id, caller string) (domain.AttemptResult, error)
	DeleteFunc          func(ctx context.Context, id, caller string) error
}

func (m *mockMessageService) Submit(ctx context.Context, in domain.SubmitInput) (string, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, in)
	}
	return "", nil
}

func (m *mockMessageService) Get(ctx context.Context, id, caller string) (*domain.ReadResult, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id, caller)
	}
	return &domain.ReadResult{}, nil
}

func (m *mockMessageService) GetFiles(ctx context.Context, id string) ([]domain.File, error) {
	if m.GetFilesFunc != nil {
		return m.GetFilesFunc(ctx, id)
	}
	return []domain.File{}, nil
}

func (m *mockMessageService) RegisterAttempt(ctx context.Context, id, caller string) (domain.AttemptResult, error) {
	if m.RegisterAttemptFunc != nil {
		return m.RegisterAttemptFunc(ctx, id, caller)
	}
	return domain.AttemptResult{}, nil
}

func (m *mockMessageService) Delete(ctx context.Context, id, caller string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, caller)
	}
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// newTestStack wires a real service on top of miniredis.
func newTestStack(t *testing.T) (*Handler, *miniredis.Miniredis, store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st := store.NewRedisStoreFromClient(client)
	ids, err := utility.NewIDGenerator(domain.DefaultIDAlphabet, domain.DefaultIDLength)
	require.NoError(t, err)
	svc := service.New(st, ratelimit.New(st, "", ratelimit.DefaultPolicies()), ids, service.Options{})
	return NewHandler(svc, st, "", 0), mr, st
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.5:4444"
	return req
}

type testPart struct {
	name        string
	contentType string
	body        string
}

func multipartRequest(t *testing.T, path string, fields map[string]string, parts []testPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		ct := p.contentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "203.0.113.5:4444"
	return req
}

func idFromURL(t *testing.T, body string) string {
	t.Helper()
	idx := strings.LastIndex(body, "/")
	require.NotEqual(t, -1, idx)
	return body[idx+1:]
}

func TestHandler_HandleHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := NewHandler(&mockMessageService{}, pingFunc(func(context.Context) error { return nil }), "", 0)
		rr := httptest.NewRecorder()
		h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ok", rr.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		h := NewHandler(&mockMessageService{}, pingFunc(func(context.Context) error { return errors.New("down") }), "", 0)
		rr := httptest.NewRecorder()
		h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestHandler_PostAndGet(t *testing.T) {
	h, mr, _ := newTestStack(t)

	rr := httptest.NewRecorder()
	req := formRequest("/post", url.Values{"msg1": {"U2FsdGVkX1+cipher"}, "expire": {"3600"}})
	req.Host = "drop.example"
	h.HandlePost(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "http://drop.example/"))
	id := idFromURL(t, rr.Body.String())
	assert.Len(t, id, 10)
	assert.Equal(t, time.Hour, mr.TTL(id))

	rr = httptest.NewRecorder()
	h.HandleGet(rr, formRequest("/get", url.Values{"id": {id}}))
	require.Equal(t, http.StatusOK, rr.Code)

	var res domain.ReadRes
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "U2FsdGVkX1+cipher", res.Msg)
	assert.False(t, res.DestroyOnRead)
	assert.Equal(t, 5, res.AttemptsLeft)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.NotZero(t, res.ExpirationTS)
	assert.Equal(t, "&nbsp; Expira en 0 d&iacute;a/s, Intentos restantes: 5", res.Info)
}

func TestHandler_PostDestroy(t *testing.T) {
	h, mr, _ := newTestStack(t)

	rr := httptest.NewRecorder()
	h.HandlePost(rr, formRequest("/post", url.Values{"msg1": {"once"}, "expire": {"600"}, "destroy": {"on"}}))
	require.Equal(t, http.StatusOK, rr.Code)
	id := idFromURL(t, rr.Body.String())

	raw, err := mr.Get(id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "destroy"))

	rr = httptest.NewRecorder()
	h.HandleGet(rr, formRequest("/get", url.Values{"id": {id}}))
	var res domain.ReadRes
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.True(t, res.DestroyOnRead)
	assert.Contains(t, res.Info, ", destruir al leer")

	rr = httptest.NewRecorder()
	h.HandleGet(rr, formRequest("/get", url.Values{"id": {id}}))
	res = domain.ReadRes{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, domain.NotFoundMessage, res.Msg)
	assert.Equal(t, "", res.Info)
	assert.Zero(t, res.ExpirationTS)
}

func TestHandler_PostPublicURL(t *testing.T) {
	svc := &mockMessageService{
		SubmitFunc: func(ctx context.Context, in domain.SubmitInput) (string, error) { return "abc123DEF0", nil },
	}
	h := NewHandler(svc, nil, "https://drop.example", 0)

	rr := httptest.NewRecorder()
	h.HandlePost(rr, formRequest("/post", url.Values{"msg1": {"m"}, "expire": {"60"}}))
	assert.Equal(t, "https://drop.example/abc123DEF0", rr.Body.String())
}

func TestHandler_PostDiscreteFiles(t *testing.T) {
	var got domain.SubmitInput
	svc := &mockMessageService{
		SubmitFunc: func(ctx context.Context, in domain.SubmitInput) (string, error) {
			got = in
			return "id", nil
		},
	}
	h := NewHandler(svc, nil, "", 0)

	req := multipartRequest(t, "/post",
		map[string]string{"msg1": "m", "expire": "60", "destroy": "on"},
		[]testPart{{name: "a.txt", body: "hello"}, {name: "b.json", contentType: "application/json", body: "{}"}},
	)
	rr := httptest.NewRecorder()
	h.HandlePost(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, got.DestroyOnRead)
	assert.Equal(t, int64(60), got.ExpireSeconds)
	files, ok := got.Attachments.(domain.DiscreteFiles)
	require.True(t, ok, "more than one part is always discrete")
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, []byte("hello"), files[0].Content)
}

func TestHandler_PostOpaqueBundle(t *testing.T) {
	h, mr, _ := newTestStack(t)
	bundle := `[{"name":"x","content":"U2FsdGVk","size":6}]`

	req := multipartRequest(t, "/post",
		map[string]string{"msg1": "m", "expire": "60"},
		[]testPart{{name: "blob", contentType: "application/json", body: bundle}},
	)
	rr := httptest.NewRecorder()
	h.HandlePost(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	id := idFromURL(t, rr.Body.String())

	raw, err := mr.Get(id)
	require.NoError(t, err)
	assert.Contains(t, raw, bundle)

	rr = httptest.NewRecorder()
	h.HandleGetFiles(rr, formRequest("/get_files", url.Values{"id": {id}}))
	require.Equal(t, http.StatusOK, rr.Code)
	var res domain.FilesRes
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, []domain.File{{Name: "x", Content: "U2FsdGVk", Size: 6}}, res.Files)
}

func TestHandler_PostValidation(t *testing.T) {
	h, _, _ := newTestStack(t)

	tests := []struct {
		name   string
		values url.Values
		status int
	}{
		{"missing msg1", url.Values{"expire": {"60"}}, http.StatusBadRequest},
		{"missing expire", url.Values{"msg1": {"m"}}, http.StatusBadRequest},
		{"expire not a number", url.Values{"msg1": {"m"}, "expire": {"soon"}}, http.StatusBadRequest},
		{"expire zero", url.Values{"msg1": {"m"}, "expire": {"0"}}, http.StatusBadRequest},
		{"expire too long", url.Values{"msg1": {"m"}, "expire": {"99999999"}}, http.StatusBadRequest},
		{"message not utf-8", url.Values{"msg1": {"ok\xff\xfe"}, "expire": {"60"}}, http.StatusBadRequest},
		{"empty message allowed", url.Values{"msg1": {""}, "expire": {"60"}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.HandlePost(rr, formRequest("/post", tt.values))
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestHandler_PostInvalidUTF8StoresNothing(t *testing.T) {
	h, mr, _ := newTestStack(t)

	rr := httptest.NewRecorder()
	h.HandlePost(rr, formRequest("/post", url.Values{"msg1": {"\xc3\x28"}, "expire": {"60"}}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, mr.Keys())
}

func TestHandler_PostInvalidTextFromService(t *testing.T) {
	svc := &mockMessageService{
		SubmitFunc: func(ctx context.Context, in domain.SubmitInput) (string, error) {
			return "", fmt.Errorf("%w: file name", domain.ErrInvalidText)
		},
	}
	h := NewHandler(svc, nil, "", 0)

	rr := httptest.NewRecorder()
	h.HandlePost(rr, formRequest("/post", url.Values{"msg1": {"m"}, "expire": {"60"}}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_PostTooLarge(t *testing.T) {
	h := NewHandler(&mockMessageService{}, nil, "", 16)

	rr := httptest.NewRecorder()
	h.HandlePost(rr, formRequest("/post", url.Values{"msg1": {strings.Repeat("x", 64)}, "expire": {"60"}}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestHandler_PostBackendError(t *testing.T) {
	svc := &mockMessageService{
		SubmitFunc: func(ctx context.Context, in domain.SubmitInput) (string, error) {
			return "", domain.ErrBackend
		},
	}
	h := NewHandler(svc, nil, "", 0)

	rr := httptest.NewRecorder()
	h.HandlePost(rr, formRequest("/post", url.Values{"msg1": {"m"}, "expire": {"60"}}))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandler_GetMissingID(t *testing.T) {
	h, _, _ := newTestStack(t)

	for _, fn := range []http.HandlerFunc{h.HandleGet, h.HandleGetFiles, h.HandleFailAttempt} {
		rr := httptest.NewRecorder()
		fn(rr, formRequest("/x", url.Values{}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, domain.MissingIDMessage, body["error"])
	}
}

func TestHandler_GetBackendError(t *testing.T) {
	svc := &mockMessageService{
		GetFunc: func(ctx context.Context, id, caller string) (*domain.ReadResult, error) {
			return nil, domain.ErrBackend
		},
		GetFilesFunc: func(ctx context.Context, id string) ([]domain.File, error) {
			return nil, domain.ErrBackend
		},
		RegisterAttemptFunc: func(ctx context.Context, id, caller string) (domain.AttemptResult, error) {
			return domain.AttemptResult{}, domain.ErrBackend
		},
	}
	h := NewHandler(svc, nil, "", 0)

	for _, fn := range []http.HandlerFunc{h.HandleGet, h.HandleGetFiles, h.HandleFailAttempt} {
		rr := httptest.NewRecorder()
		fn(rr, formRequest("/x", url.Values{"id": {"abc"}}))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	}
}

func TestHandler_CallerIsClientIP(t *testing.T) {
	var seen string
	svc := &mockMessageService{
		GetFunc: func(ctx context.Context, id, caller string) (*domain.ReadResult, error) {
			seen = caller
			return &domain.ReadResult{}, nil
		},
	}
	h := NewHandler(svc, nil, "", 0)

	rr := httptest.NewRecorder()
	h.HandleGet(rr, formRequest("/get", url.Values{"id": {"abc"}}))
	assert.Equal(t, "203.0.113.5", seen)
}

func TestHandler_FailAttempt(t *testing.T) {
	h, mr, _ := newTestStack(t)
	require.NoError(t, mr.Set("guarded001", "x"))

	for _, want := range []int{4, 3, 2, 1, 0} {
		rr := httptest.NewRecorder()
		h.HandleFailAttempt(rr, formRequest("/fail_attempt", url.Values{"id": {"guarded001"}}))
		require.Equal(t, http.StatusOK, rr.Code)

		var res domain.AttemptRes
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, want, res.AttemptsLeft)
	}

	rr := httptest.NewRecorder()
	h.HandleFailAttempt(rr, formRequest("/fail_attempt", url.Values{"id": {"guarded001"}}))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"error":"too_many_attempts","attempts_left":0}`, rr.Body.String())
	assert.False(t, mr.Exists("guarded001"))
}

func TestHandler_Delete(t *testing.T) {
	h, mr, _ := newTestStack(t)
	require.NoError(t, mr.Set("doomed0001", "x"))

	rr := httptest.NewRecorder()
	h.HandleDelete(rr, formRequest("/delete", url.Values{"id": {"doomed0001"}}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())
	assert.False(t, mr.Exists("doomed0001"))

	rr = httptest.NewRecorder()
	h.HandleDelete(rr, formRequest("/delete", url.Values{"id": {"doomed0001"}}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":"No se encontró el mensaje"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.HandleDelete(rr, formRequest("/delete", url.Values{}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":"Falta el parámetro id"}`, rr.Body.String())
}

func TestHandler_DeleteRateLimited(t *testing.T) {
	h, _, _ := newTestStack(t)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.HandleDelete(rr, formRequest("/delete", url.Values{"id": {"ghost00000"}}))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}
	rr := httptest.NewRecorder()
	h.HandleDelete(rr, formRequest("/delete", url.Values{"id": {"ghost00000"}}))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":"rate_limited"}`, rr.Body.String())
}

func TestHandler_DeleteBackendError(t *testing.T) {
	svc := &mockMessageService{
		DeleteFunc: func(ctx context.Context, id, caller string) error {
			return errors.Join(domain.ErrBackend, errors.New("connection reset"))
		},
	}
	h := NewHandler(svc, nil, "", 0)

	rr := httptest.NewRecorder()
	h.HandleDelete(rr, formRequest("/delete", url.Values{"id": {"abc"}}))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var res domain.DeleteRes
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection reset")
}
