package operation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register("http", &HTTPExecutor{})
}

// 🌐 HTTPExecutor sends an HTTP request. Options: "url" (required), "method" (default POST),
// "body" (default: a JSON description of the run) and "header.<Name>" entries.
type HTTPExecutor struct {
	Client *http.Client
}

type httpPayload struct {
	Target string   `json:"target"`
	Type   string   `json:"type"`
	Event  string   `json:"event"`
	Files  []string `json:"files"`
}

// Execute implements Executor
func (e *HTTPExecutor) Execute(ctx context.Context, oc *Context) error {
	opts := oc.Operation.Options

	url := strings.TrimSpace(opts["url"])
	if url == "" {
		return errors.Errorf("option url is required")
	}

	method := strings.ToUpper(strings.TrimSpace(opts["method"]))
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	contentType := ""
	if b, ok := opts["body"]; ok {
		body = strings.NewReader(b)
	} else if method != http.MethodGet && method != http.MethodHead {
		data, err := json.Marshal(httpPayload{
			Target: oc.Target.DisplayName(),
			Type:   oc.Target.NormalizedType(),
			Event:  oc.Event.String(),
			Files:  oc.Files,
		})
		if err != nil {
			return errors.Errorf("encoding payload: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range opts {
		if name, ok := strings.CutPrefix(k, "header."); ok {
			req.Header.Set(name, v)
		}
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	zerolog.Ctx(ctx).Debug().Str("url", url).Int("status", resp.StatusCode).Msg("http operation finished")

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
