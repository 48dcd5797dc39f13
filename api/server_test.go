package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagtint/plugin"
	"tagtint/storage"
	"tagtint/style"
	"tagtint/stylesheet"
	"tagtint/theme"
	"tagtint/vault"
)

var scanTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedJobs map[string]time.Time

func (j fixedJobs) LastRun() map[string]time.Time { return j }

type testEnv struct {
	srv      *httptest.Server
	registry *style.Registry
	store    *storage.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	vaultDir := filepath.Join(dir, "vault")
	require.NoError(t, os.MkdirAll(vaultDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "plan.md"), []byte("---\ntags: [project]\n---\n#later"), 0o644))

	registry := style.NewRegistry()
	source := stylesheet.NewSheets(nil, nil, stylesheet.TextCollection{
		CSS: `body { --accent-h: 254; --accent-s: 80%; --text-accent: var(--accent); }`,
	})
	store := storage.New(dir, map[string]string{"project": "#3366cc"})
	p := plugin.New(store, vault.New(vaultDir, time.Second, nil),
		theme.NewTagApplier(registry, "", nil),
		theme.NewAccentApplier(registry, source, nil), nil)
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)

	mux := http.NewServeMux()
	server := NewServer(p, registry, source, fixedJobs{"vault-scan": scanTime}, nil)
	t.Cleanup(server.Register(mux))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, registry: registry, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health struct {
		Status string      `json:"status"`
		Jobs   []jobStatus `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	require.Len(t, health.Jobs, 1)
	assert.Equal(t, "vault-scan", health.Jobs[0].Name)
	assert.True(t, scanTime.Equal(health.Jobs[0].LastRun))
}

func TestTagEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/tags", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"project": "#3366cc"}, decodeBody[map[string]string](t, resp))

	resp = env.do(t, http.MethodPut, "/api/tags/done", `{"color":"#00FF00"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "#00ff00", decodeBody[map[string]string](t, resp)["done"])

	saved, err := env.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", saved["done"])

	resp = env.do(t, http.MethodPut, "/api/tags/done", `{"color":"green"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/tags/nested%2Ftag", `{"color":"#010203"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "#010203", decodeBody[map[string]string](t, resp)["nested/tag"])

	resp = env.do(t, http.MethodDelete, "/api/tags/done", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/tags", `{"a":"#aaaaaa"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"a": "#aaaaaa"}, decodeBody[map[string]string](t, resp))

	resp = env.do(t, http.MethodPut, "/api/tags", `{"a":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/tags", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, PUT", resp.Header.Get("Allow"))
}

func TestActiveDocumentAppliesTheme(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/active", `{"path":"plan.md"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	active := decodeBody[plugin.Active](t, resp)
	assert.Equal(t, []string{"project", "later"}, active.Tags)
	assert.Equal(t, "#3366cc", active.Color)

	resp = env.do(t, http.MethodGet, "/api/styles", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/css; charset=utf-8", resp.Header.Get("Content-Type"))
	body := decodeCSS(t, resp)
	assert.Contains(t, body, "--accent-h: 220 !important;")
	assert.NotContains(t, body, "--text-accent:")

	resp = env.do(t, http.MethodPost, "/api/active", `{"tags":["unknown"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, ok := env.registry.Block(theme.ThemeBlockID)
	assert.False(t, ok)

	resp = env.do(t, http.MethodPost, "/api/active", `{"path":"../etc/passwd"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/active", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAccentsAndBlocks(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/accents", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []accentVariable{
		{Name: "accent-h", Value: "254"},
		{Name: "accent-s", Value: "80%"},
		{Name: "text-accent", Value: "var(--accent)"},
	}, decodeBody[[]accentVariable](t, resp))

	resp = env.do(t, http.MethodGet, "/api/styles/blocks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeBody[style.Snapshot](t, resp)
	require.Len(t, snap.Blocks, 1)
	assert.Equal(t, theme.TagBlockID, snap.Blocks[0].ID)
}

func TestWebsocketReceivesUpdates(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first styleMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "styles", first.Type)
	assert.Contains(t, first.CSS, `[href="#project"]`)

	resp := env.do(t, http.MethodPut, "/api/tags/fresh", `{"color":"#abcdef"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var update styleMessage
	require.NoError(t, conn.ReadJSON(&update))
	assert.Contains(t, update.CSS, `[href="#fresh"] { color: #abcdef !important; }`)
}

func TestSameHostOrigin(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "http://localhost:8787/api/ws", nil)
	assert.True(t, sameHostOrigin(req))

	req.Header.Set("Origin", "http://localhost:8787")
	assert.True(t, sameHostOrigin(req))

	req.Header.Set("Origin", "app://obsidian.md")
	assert.True(t, sameHostOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, sameHostOrigin(req))
}

func decodeCSS(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestStalledWebsocketClientDoesNotBlockEdits(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// The client never reads, so its socket buffers fill after a few snapshots.
	colors := make(map[string]string, 3000)
	for i := 0; i < 3000; i++ {
		colors[fmt.Sprintf("tag-%04d", i)] = fmt.Sprintf("#%06x", i*4099%0xffffff)
	}
	payload, err := json.Marshal(colors)
	require.NoError(t, err)

	client := &http.Client{Timeout: 5 * time.Second}
	for i := 0; i < 20; i++ {
		req, err := http.NewRequest(http.MethodPut, env.srv.URL+"/api/tags", bytes.NewReader(payload))
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err, "edit %d", i)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := client.Get(env.srv.URL + "/api/tags")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Len(t, decodeBody[map[string]string](t, resp), 3000)
}
