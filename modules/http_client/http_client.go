package http_client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/hcl"
	"github.com/zclconf/go-cty/cty"
)

// Request performs an HTTP request. The single argument is either a URL
// string or an object with a required "url" and optional "method", "body"
// and "timeout" attributes. When no timeout is passed the instance's
// "timeout" config is used if the class declares one.
//
// The result is an object with "status_code", "headers" and "body".
func (m *Module) Request(ctx context.Context, self *class.Instance, args ...cty.Value) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	if len(args) != 1 {
		return cty.NilVal, fmt.Errorf("http.Request takes one argument, got %d", len(args))
	}
	opts, err := decodeOptions(ctx, args[0])
	if err != nil {
		return cty.NilVal, fmt.Errorf("http.Request: %w", err)
	}
	if opts.Timeout == "" && self != nil {
		if _, ok := self.Class().ConfigDefault("timeout"); ok {
			v, err := self.Get(ctx, "timeout")
			if err != nil {
				return cty.NilVal, err
			}
			if err := hcl.Decode(ctx, v, &opts.Timeout); err != nil {
				return cty.NilVal, fmt.Errorf("http.Request: timeout config: %w", err)
			}
		}
	}
	timeout := DefaultTimeout
	if opts.Timeout != "" {
		timeout, err = time.ParseDuration(opts.Timeout)
		if err != nil {
			return cty.NilVal, fmt.Errorf("http.Request: invalid timeout: %w", err)
		}
	}

	client := m.Client
	if client == nil {
		client = newClient()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	logger.Info("Making HTTP request", "method", opts.Method, "url", opts.URL)
	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, body)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Info("Received HTTP response", "status", resp.Status)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to read response body: %w", err)
	}

	headers := make(map[string]cty.Value, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = cty.StringVal(resp.Header.Get(k))
	}
	headerVal := cty.MapValEmpty(cty.String)
	if len(headers) > 0 {
		headerVal = cty.MapVal(headers)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"status_code": cty.NumberIntVal(int64(resp.StatusCode)),
		"headers":     headerVal,
		"body":        cty.StringVal(string(bodyBytes)),
	}), nil
}

type requestOptions struct {
	URL     string
	Method  string
	Body    string
	Timeout string
}

func decodeOptions(ctx context.Context, v cty.Value) (requestOptions, error) {
	opts := requestOptions{Method: http.MethodGet}
	if v.Type() == cty.String {
		return opts, hcl.Decode(ctx, v, &opts.URL)
	}
	if !v.Type().IsObjectType() {
		return opts, fmt.Errorf("expected a URL string or an options object, got %s", v.Type().FriendlyName())
	}

	fields := []struct {
		name     string
		target   *string
		required bool
	}{
		{"url", &opts.URL, true},
		{"method", &opts.Method, false},
		{"body", &opts.Body, false},
		{"timeout", &opts.Timeout, false},
	}
	for _, f := range fields {
		if !v.Type().HasAttribute(f.name) {
			if f.required {
				return opts, fmt.Errorf("missing required attribute %q", f.name)
			}
			continue
		}
		if err := hcl.Decode(ctx, v.GetAttr(f.name), f.target); err != nil {
			return opts, fmt.Errorf("attribute %q: %w", f.name, err)
		}
	}
	for name := range v.Type().AttributeTypes() {
		switch name {
		case "url", "method", "body", "timeout":
		default:
			return opts, fmt.Errorf("unsupported attribute %q", name)
		}
	}
	if opts.URL == "" {
		return opts, fmt.Errorf("url must not be empty")
	}
	opts.Method = strings.ToUpper(opts.Method)
	return opts, nil
}
