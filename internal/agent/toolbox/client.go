// Package toolbox talks to the hosted tool gateway and exposes its tools to
// the reasoning engine as eino tools.
package toolbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
	errx "github.com/finn-shopping-assistant/server/internal/core/error"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

var (
	// ErrEmptyResult is returned by Call when the tool ran but found nothing.
	ErrEmptyResult = errors.New("tool returned no data")
	// ErrIdentityRequired is recorded when a user-scoped tool is called before
	// the user id is known.
	ErrIdentityRequired = errors.New("user id required")
	// ErrNotConfigured is returned when no gateway URL is set.
	ErrNotConfigured = errors.New("tool gateway url is not configured")
)

// Gateway invokes one named remote tool.
type Gateway interface {
	Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}

type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    *bool  `json:"required,omitempty"`
	Items       *struct {
		Type string `json:"type"`
	} `json:"items,omitempty"`
}

// IsRequired defaults to true, as the gateway does.
func (p Parameter) IsRequired() bool {
	return p.Required == nil || *p.Required
}

type ToolManifest struct {
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Manifest is the toolset description served by the gateway.
type Manifest struct {
	ServerVersion string                  `json:"serverVersion"`
	Tools         map[string]ToolManifest `json:"tools"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg model.ToolboxConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// LoadToolset fetches the manifest of a toolset; an empty name is the default toolset.
func (c *Client) LoadToolset(ctx context.Context, toolset string) (*Manifest, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	endpoint := c.baseURL + "/api/toolset/"
	if toolset != "" {
		endpoint += url.PathEscape(toolset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("load toolset %q: %w", toolset, err)
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, errx.WrapToolbox(fmt.Errorf("decode manifest: %w", err))
	}
	if len(m.Tools) == 0 {
		return nil, errx.WrapToolbox(fmt.Errorf("toolset %q has no tools", toolset))
	}

	logx.Info().
		Str("server_version", m.ServerVersion).
		Int("tools", len(m.Tools)).
		Msg("Loaded toolbox toolset")
	return &m, nil
}

// Call invokes a tool and returns its JSON result. Empty results yield ErrEmptyResult.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s arguments: %w", name, err)
	}

	endpoint := c.baseURL + "/api/tool/" + url.PathEscape(name) + "/invoke"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", name, err)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errx.WrapToolbox(fmt.Errorf("decode %s result: %w", name, err))
	}

	result := unquote(envelope.Result)
	if isEmpty(result) {
		return nil, ErrEmptyResult
	}
	return result, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errx.WrapToolbox(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errx.WrapToolbox(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, errx.WrapToolbox(fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	return body, nil
}

// unquote unwraps results that the gateway sends as a JSON string holding JSON text.
func unquote(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	s = strings.TrimSpace(s)
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	// plain text result, keep it as a JSON string
	return raw
}

func isEmpty(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "[]", "{}", `""`:
		return true
	}
	return false
}
