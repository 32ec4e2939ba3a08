package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piapi/internal/command"
	"piapi/internal/metrics"
	"piapi/internal/store"
)

const welcome = "Welcome to 3ESE API!"

type fixture struct {
	srv     *Server
	ts      *httptest.Server
	store   *store.Store
	hub     *Hub
	metrics *metrics.Collector
}

func newFixture(t *testing.T, initial string) *fixture {
	t.Helper()
	m := metrics.New()
	hub := NewHub(nil, m)
	st := store.New(initial, store.WithObserver(hub.Publish))
	srv := NewServer(command.NewRouter(st, nil, m), hub, nil, m)
	ts := httptest.NewServer(srv)
	go hub.Run()
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return &fixture{srv: srv, ts: ts, store: st, hub: hub, metrics: m}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeMessage(t *testing.T, data []byte) messageResponse {
	t.Helper()
	var m messageResponse
	require.NoError(t, json.Unmarshal(data, &m), "body: %s", data)
	return m
}

// TestEndToEnd replays the canonical request sequence over HTTP.
func TestEndToEnd(t *testing.T) {
	f := newFixture(t, welcome)

	resp, data := f.do(t, http.MethodGet, "/api/welcome/0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeMessage(t, data)
	require.NotNil(t, m.Letter)
	assert.Equal(t, "W", *m.Letter)
	require.NotNil(t, m.X)
	assert.Equal(t, 0, *m.X)

	resp, data = f.do(t, http.MethodPost, "/api/welcome", `{"sentence":"Hi"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Hi", decodeMessage(t, data).Message)

	resp, data = f.do(t, http.MethodPut, "/api/welcome/2", `{"word":"!!"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hi!!", decodeMessage(t, data).Message)

	resp, data = f.do(t, http.MethodDelete, "/api/welcome/0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "i!!", decodeMessage(t, data).Message)

	resp, data = f.do(t, http.MethodDelete, "/api/welcome", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", decodeMessage(t, data).Message)

	resp, _ = f.do(t, http.MethodGet, "/api/welcome/0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAll_ResponseShape(t *testing.T) {
	f := newFixture(t, welcome)

	resp, data := f.do(t, http.MethodGet, "/api/welcome?lang=fr&lang=en", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	m := decodeMessage(t, data)
	assert.Equal(t, http.MethodGet, m.Method)
	assert.Equal(t, f.ts.URL+"/api/welcome?lang=fr&lang=en", m.URL)
	assert.Equal(t, map[string]string{"lang": "fr"}, m.Args)
	assert.Equal(t, welcome, m.Message)
	assert.Nil(t, m.X)
	assert.Nil(t, m.Letter)
	assert.NotEmpty(t, m.Header["Host"])
	assert.Equal(t, resp.Header.Get(RequestIDHeader), m.RequestID)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "x", "x is always present, null when absent")
}

func TestWelcomeText(t *testing.T) {
	f := newFixture(t, welcome)
	resp, data := f.do(t, http.MethodGet, "/api/welcome/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, welcome, string(data))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
}

func TestHello(t *testing.T) {
	f := newFixture(t, welcome)
	resp, data := f.do(t, http.MethodGet, "/TP_reaseau", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello, World!\n", string(data))
}

func TestWriteVerbs(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantValue  string
	}{
		{"post with index", http.MethodPost, "/api/welcome/3", `{"sentence":"new"}`, http.StatusCreated, "new"},
		{"post empty sentence", http.MethodPost, "/api/welcome", `{"sentence":""}`, http.StatusCreated, ""},
		{"post missing sentence", http.MethodPost, "/api/welcome", `{"word":"x"}`, http.StatusNoContent, welcome},
		{"post null body", http.MethodPost, "/api/welcome", `null`, http.StatusNoContent, welcome},
		{"post malformed", http.MethodPost, "/api/welcome", `{"sentence":`, http.StatusBadRequest, welcome},
		{"post empty body", http.MethodPost, "/api/welcome", ``, http.StatusBadRequest, welcome},
		{"post wrong type", http.MethodPost, "/api/welcome", `{"sentence":42}`, http.StatusBadRequest, welcome},
		{"post trailing data", http.MethodPost, "/api/welcome", `{"sentence":"a"} {}`, http.StatusBadRequest, welcome},
		{"put insert", http.MethodPut, "/api/welcome/0", `{"word":">> "}`, http.StatusOK, ">> " + welcome},
		{"put append", http.MethodPut, "/api/welcome/20", `{"word":"!"}`, http.StatusOK, welcome + "!"},
		{"put past end", http.MethodPut, "/api/welcome/21", `{"word":"!"}`, http.StatusBadRequest, welcome},
		{"put missing word", http.MethodPut, "/api/welcome/0", `{}`, http.StatusNoContent, welcome},
		{"patch letter", http.MethodPatch, "/api/welcome/0", `{"letter":"w"}`, http.StatusOK, "welcome to 3ESE API!"},
		{"patch two letters", http.MethodPatch, "/api/welcome/0", `{"letter":"ww"}`, http.StatusBadRequest, welcome},
		{"patch out of range", http.MethodPatch, "/api/welcome/99", `{"letter":"w"}`, http.StatusBadRequest, welcome},
		{"patch missing letter", http.MethodPatch, "/api/welcome/0", `{"sentence":"x"}`, http.StatusNoContent, welcome},
		{"delete char", http.MethodDelete, "/api/welcome/19", ``, http.StatusOK, "Welcome to 3ESE API"},
		{"delete out of range", http.MethodDelete, "/api/welcome/20", ``, http.StatusBadRequest, welcome},
		{"index overflow", http.MethodGet, "/api/welcome/99999999999999999999999", ``, http.StatusBadRequest, welcome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, welcome)
			resp, data := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, "body: %s", data)
			assert.Equal(t, tt.wantValue, f.store.Snapshot().Value)

			switch tt.wantStatus {
			case http.StatusNoContent:
				assert.Empty(t, data)
			case http.StatusBadRequest:
				var e errorResponse
				require.NoError(t, json.Unmarshal(data, &e))
				assert.NotEmpty(t, e.Message)
				assert.Equal(t, resp.Header.Get(RequestIDHeader), e.RequestID)
			}
		})
	}
}

func TestPatch_EchoesLetter(t *testing.T) {
	f := newFixture(t, "Hello")
	_, data := f.do(t, http.MethodPatch, "/api/welcome/1", `{"letter":"a"}`)
	m := decodeMessage(t, data)
	require.NotNil(t, m.Letter)
	assert.Equal(t, "a", *m.Letter)
	assert.Equal(t, "Hallo", m.Message)
}

func TestDecodeFailureNeverReachesRouter(t *testing.T) {
	f := newFixture(t, welcome)
	f.do(t, http.MethodPut, "/api/welcome/0", `not json`)
	snap := f.store.Snapshot()
	assert.Equal(t, uint64(0), snap.Version)
	assert.Equal(t, int64(1), f.metrics.Snapshot().BadRequests)
}

func TestRouting(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodGet, "/api/welcome/abc", http.StatusNotFound},
		{http.MethodGet, "/api/welcome/-1", http.StatusNotFound},
		{http.MethodPut, "/api/welcome", http.StatusMethodNotAllowed},
		{http.MethodPatch, "/api/welcome", http.StatusMethodNotAllowed},
		{http.MethodPost, "/TP_reaseau", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/request/", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			f := newFixture(t, welcome)
			resp, data := f.do(t, tt.method, tt.path, "")
			assert.Equal(t, tt.want, resp.StatusCode)
			if tt.want == http.StatusNotFound {
				assert.Contains(t, string(data), "Not Found")
			}
			assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
		})
	}
}

func TestRequestID(t *testing.T) {
	f := newFixture(t, welcome)

	resp, _ := f.do(t, http.MethodGet, "/api/welcome", "")
	first := resp.Header.Get(RequestIDHeader)
	resp, _ = f.do(t, http.MethodGet, "/api/welcome", "")
	assert.NotEqual(t, first, resp.Header.Get(RequestIDHeader))

	const mine = "6f1c1a7e-3f57-4b43-9d54-0f0b3b6f1c22"
	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/welcome", nil)
	req.Header.Set(RequestIDHeader, mine)
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, mine, r2.Header.Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "not-a-uuid")
	r3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r3.Body.Close()
	assert.NotEqual(t, "not-a-uuid", r3.Header.Get(RequestIDHeader))
}

func TestEcho(t *testing.T) {
	f := newFixture(t, welcome)

	resp, data := f.do(t, http.MethodGet, "/api/request/?a=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var e echoResponse
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Nil(t, e.Path)
	assert.Equal(t, map[string]string{"a": "1"}, e.Args)
	assert.Nil(t, e.Post)

	resp, data = f.do(t, http.MethodPost, "/api/request/sensors", `{"t":21.5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	e = echoResponse{}
	require.NoError(t, json.Unmarshal(data, &e))
	require.NotNil(t, e.Path)
	assert.Equal(t, "sensors", *e.Path)
	require.NotNil(t, e.Post)
	assert.Equal(t, map[string]interface{}{"t": 21.5}, e.Post.Data)
	assert.Equal(t, "application/json", e.Headers["Content-Type"])

	assert.Equal(t, welcome, f.store.Snapshot().Value)
	assert.Equal(t, uint64(0), f.store.Snapshot().Version)
}

func TestEcho_NonJSONBody(t *testing.T) {
	f := newFixture(t, welcome)
	req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/api/request/x", bytes.NewBufferString("plain"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `{"data":null}`, string(raw["POST"]))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, welcome)
	f.do(t, http.MethodPut, "/api/welcome/0", `{"word":"x"}`)
	f.do(t, http.MethodGet, "/api/welcome/999", "")

	resp, data := f.do(t, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, int64(1), snap.Mutations)
	assert.Equal(t, int64(1), snap.BadRequests)
	assert.GreaterOrEqual(t, snap.RequestsTotal, int64(3))
}

func TestConcurrentRequests(t *testing.T) {
	const n = 40
	f := newFixture(t, welcome)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPut, f.ts.URL+"/api/welcome/0", strings.NewReader(`{"word":"+"}`))
			resp, err := http.DefaultClient.Do(req)
			if assert.NoError(t, err) {
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	snap := f.store.Snapshot()
	assert.Equal(t, strings.Repeat("+", n)+welcome, snap.Value)
	assert.Equal(t, uint64(n), snap.Version)
}
