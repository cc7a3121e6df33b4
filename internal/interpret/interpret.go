// Package interpret is the client for the external script-interpretation
// service. Each call submits the session context and comes back with a
// verdict, a replacement context sub-document, and optional user-facing
// output.
package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Command is the closed set of verdicts decoded from the response's
// "command" field. This is the single point where raw command text is
// interpreted.
type Command int

const (
	// Wait suspends the cycle until the user posts at least one message.
	Wait Command = iota
	// Finish terminates the session successfully, clearing its context.
	Finish
	// Pause stops the cycle; the session stays resumable.
	Pause
	// Operator escalates the conversation to a human operator.
	Operator
	// Unknown is any unrecognized verdict; the raw text is kept alongside.
	Unknown
)

// ParseCommand decodes a verdict string.
func ParseCommand(s string) Command {
	switch s {
	case "Wait":
		return Wait
	case "Finish":
		return Finish
	case "Pause":
		return Pause
	case "Operator":
		return Operator
	default:
		return Unknown
	}
}

func (c Command) String() string {
	switch c {
	case Wait:
		return "Wait"
	case Finish:
		return "Finish"
	case Pause:
		return "Pause"
	case Operator:
		return "Operator"
	default:
		return "Unknown"
	}
}

// Response is one interpretation result.
type Response struct {
	Command    string          `json:"command"`
	Context    any             `json:"context"`
	UserOutput json.RawMessage `json:"user_output,omitempty"`
}

// Verdict returns the decoded command.
func (r *Response) Verdict() Command {
	return ParseCommand(r.Command)
}

// Outputs normalizes user_output into an ordered list of texts. A single
// string becomes a one-element list, an array keeps its order, and an
// object's values are ordered by key.
func (r *Response) Outputs() []string {
	if len(r.UserOutput) == 0 {
		return nil
	}

	var single string
	if json.Unmarshal(r.UserOutput, &single) == nil {
		return []string{single}
	}

	var list []string
	if json.Unmarshal(r.UserOutput, &list) == nil {
		return list
	}

	var keyed map[string]string
	if json.Unmarshal(r.UserOutput, &keyed) == nil {
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, keyed[k])
		}
		return out
	}

	return nil
}

// StatusError is a non-success response from the interpretation service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("interpret: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client calls the interpretation service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL
// (e.g. "http://127.0.0.1:8000").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Interpret submits the session context to the given script and decodes the
// response. A non-2xx status is returned as *StatusError.
func (c *Client) Interpret(ctx context.Context, script string, sessionContext any) (*Response, error) {
	body, err := json.Marshal(sessionContext)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/scripts/%s", c.baseURL, script)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("interpret %s: %w", script, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
