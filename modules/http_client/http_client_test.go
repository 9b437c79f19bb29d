package http_client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/registry"
	"github.com/vk/classkit/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(200 * time.Millisecond)
		}
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(append([]byte(r.Method+" "+r.URL.Path+" "), b...))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequest(t *testing.T) {
	srv := newServer(t)
	m := &Module{}
	l := registry.NewLibrary()
	l.Install(m)
	defer m.Client.CloseIdleConnections()

	ctx, _ := testutil.Context(t)

	t.Run("url string", func(t *testing.T) {
		res, err := m.Request(ctx, nil, cty.StringVal(srv.URL+"/a"))
		require.NoError(t, err)
		assert.Equal(t, "GET /a ", res.GetAttr("body").AsString())
		code, _ := res.GetAttr("status_code").AsBigFloat().Int64()
		assert.Equal(t, int64(http.StatusTeapot), code)
		assert.Equal(t, "GET", res.GetAttr("headers").Index(cty.StringVal("x-method")).AsString())
	})

	t.Run("options object", func(t *testing.T) {
		res, err := m.Request(ctx, nil, cty.ObjectVal(map[string]cty.Value{
			"url":    cty.StringVal(srv.URL + "/b"),
			"method": cty.StringVal("post"),
			"body":   cty.StringVal("payload"),
		}))
		require.NoError(t, err)
		assert.Equal(t, "POST /b payload", res.GetAttr("body").AsString())
	})

	t.Run("instance timeout config", func(t *testing.T) {
		b := class.NewBuilder("App.Client")
		b.SetConfigDefault("timeout", cty.StringVal("20ms"))
		inst := class.New(b.Freeze())

		_, err := m.Request(ctx, inst, cty.StringVal(srv.URL+"/slow"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute request")
	})
}

func TestRequest_InvalidOptions(t *testing.T) {
	m := &Module{Client: http.DefaultClient}
	ctx, _ := testutil.Context(t)

	testCases := []struct {
		name   string
		args   []cty.Value
		errMsg string
	}{
		{name: "no args", errMsg: "takes one argument"},
		{name: "number", args: []cty.Value{cty.NumberIntVal(1)}, errMsg: "expected a URL string"},
		{name: "missing url", args: []cty.Value{cty.ObjectVal(map[string]cty.Value{"method": cty.StringVal("GET")})}, errMsg: `missing required attribute "url"`},
		{name: "unknown attr", args: []cty.Value{cty.ObjectVal(map[string]cty.Value{"url": cty.StringVal("http://x"), "verb": cty.StringVal("GET")})}, errMsg: `unsupported attribute "verb"`},
		{name: "bad timeout", args: []cty.Value{cty.ObjectVal(map[string]cty.Value{"url": cty.StringVal("http://x"), "timeout": cty.StringVal("soon")})}, errMsg: "invalid timeout"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Request(ctx, nil, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
