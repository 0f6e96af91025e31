// Package api is the REST client for the work-tracking backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"

	"github.com/op/go-logging"

	"github.com/worktrack/agent/internal/config"
	"github.com/worktrack/agent/internal/device"
)

var log = logging.MustGetLogger("api")

// ErrNoCredential is returned by authenticated calls made before Login.
var ErrNoCredential = errors.New("not logged in")

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}

// IsUnauthorized reports whether err is a 401 or 403 from the backend.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
	}
	return false
}

// Client makes REST calls to the backend on behalf of one employee.
type Client struct {
	backend config.BackendConfig
	auth    config.AuthConfig
	client  *http.Client
	upload  *http.Client

	mu     sync.RWMutex
	token  string
	device device.Info
}

// New creates a client for the given backend and credentials.
func New(backend config.BackendConfig, auth config.AuthConfig) *Client {
	return &Client{
		backend: backend,
		auth:    auth,
		client:  &http.Client{Timeout: backend.Timeout},
		upload:  &http.Client{Timeout: backend.UploadTimeout},
	}
}

// EmployeeID is the identity the agent reports under.
func (c *Client) EmployeeID() string { return c.auth.Email }

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SetDevice attaches host details to the work-start notification.
func (c *Client) SetDevice(info device.Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = info
}

// Login exchanges credentials for a bearer token and stores it.
func (c *Client) Login(ctx context.Context) error {
	body := map[string]string{
		"email":    c.auth.Email,
		"password": c.auth.Password,
		"role":     c.auth.Role,
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, c.client, http.MethodPost, "/auth/login", body, &out, false); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if out.Token == "" {
		return errors.New("login: no token in response")
	}
	c.SetToken(out.Token)
	log.Infof("logged in as %s", c.auth.Email)
	return nil
}

// CaptureInterval fetches the employee's assigned capture interval.
// assigned is false when the backend has none on record.
func (c *Client) CaptureInterval(ctx context.Context) (seconds int, assigned bool, err error) {
	var out struct {
		Assigned        bool `json:"assigned"`
		IntervalSeconds *int `json:"intervalSeconds"`
	}
	if err := c.do(ctx, c.client, http.MethodGet, "/capture-interval", nil, &out, true); err != nil {
		return 0, false, err
	}
	if !out.Assigned || out.IntervalSeconds == nil {
		return 0, false, nil
	}
	return *out.IntervalSeconds, true, nil
}

// StartWork opens a work session on the backend.
func (c *Client) StartWork(ctx context.Context) error {
	c.mu.RLock()
	info := c.device
	c.mu.RUnlock()
	return c.do(ctx, c.client, http.MethodPost, "/work/start", info, nil, true)
}

// StopWork closes the current work session.
func (c *Client) StopWork(ctx context.Context) error {
	return c.do(ctx, c.client, http.MethodPost, "/work/stop", struct{}{}, nil, true)
}

// Heartbeat reports idle seconds accumulated since the previous heartbeat.
func (c *Client) Heartbeat(ctx context.Context, idleDeltaSeconds int64) error {
	body := map[string]int64{"idleDeltaSeconds": idleDeltaSeconds}
	return c.do(ctx, c.client, http.MethodPost, "/work/heartbeat", body, nil, true)
}

// UploadScreenshot posts a JPEG as multipart form data.
func (c *Client) UploadScreenshot(ctx context.Context, jpeg []byte) error {
	token := c.Token()
	if token == "" {
		return ErrNoCredential
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="screenshot"; filename="screenshot.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(jpeg); err != nil {
		return err
	}
	if err := mw.WriteField("employeeId", c.auth.Email); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	const path = "/uploads/screenshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backend.Endpoint(path), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return c.send(c.upload, req, path, nil)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any, authed bool) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.backend.Endpoint(path), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.Token()
		if token == "" {
			return ErrNoCredential
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.send(hc, req, path, out)
}

func (c *Client) send(hc *http.Client, req *http.Request, path string, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: req.Method, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
