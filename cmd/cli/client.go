package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/smallwat3r/secretdrop/internal/domain"
)

const (
	maxRetries = 5
	retryDelay = 1 * time.Second
)

type client struct {
	baseURL    string
	http       *http.Client
	retryDelay time.Duration
}

func newClient(baseURL string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 30 * time.Second},
		retryDelay: retryDelay,
	}
}

// do sends the request built by newReq, retrying while the server answers
// 502 (a sleeping instance waking up). newReq is called once per attempt so
// the body is fresh each time.
func (c *client) do(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			slog.Warn("server returned 502, retrying", "delay", c.retryDelay, "attempt", i, "of", maxRetries-1)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusBadGateway {
			return resp, nil
		}
		resp.Body.Close()
	}
	return nil, fmt.Errorf("server unavailable after %d retries", maxRetries)
}

func (c *client) postForm(ctx context.Context, path string, values url.Values) (*http.Response, error) {
	body := values.Encode()
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+path, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// submit posts a message with an optional JSON files bundle and returns
// the link the server hands back.
func (c *client) submit(ctx context.Context, message string, expire int64, destroy bool, bundle []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("msg1", message)
	_ = mw.WriteField("expire", fmt.Sprintf("%d", expire))
	if destroy {
		_ = mw.WriteField("destroy", "on")
	}
	if bundle != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="blob"`)
		h.Set("Content-Type", "application/json")
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", err
		}
		if _, err := part.Write(bundle); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	payload := buf.Bytes()

	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/post", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *client) get(ctx context.Context, id string) (domain.ReadRes, error) {
	var out domain.ReadRes
	err := c.postJSON(ctx, "/get", id, http.StatusOK, &out)
	return out, err
}

func (c *client) getFiles(ctx context.Context, id string) ([]domain.File, error) {
	var out domain.FilesRes
	if err := c.postJSON(ctx, "/get_files", id, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// failAttempt reports a wrong key. Once the server purges the record the
// answer is 429 with zero attempts left.
func (c *client) failAttempt(ctx context.Context, id string) (domain.AttemptRes, error) {
	resp, err := c.postForm(ctx, "/fail_attempt", url.Values{"id": {id}})
	if err != nil {
		return domain.AttemptRes{}, err
	}
	defer resp.Body.Close()

	var out domain.AttemptRes
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusTooManyRequests {
		return out, unexpectedStatus(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *client) delete(ctx context.Context, id string) (domain.DeleteRes, int, error) {
	resp, err := c.postForm(ctx, "/delete", url.Values{"id": {id}})
	if err != nil {
		return domain.DeleteRes{}, 0, err
	}
	defer resp.Body.Close()

	var out domain.DeleteRes
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return out, resp.StatusCode, nil
}

func (c *client) postJSON(ctx context.Context, path, id string, want int, dst any) error {
	resp, err := c.postForm(ctx, path, url.Values{"id": {id}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return unexpectedStatus(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func unexpectedStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
