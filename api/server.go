package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tagtint/config"
	"tagtint/logger"
	"tagtint/plugin"
	"tagtint/style"
	"tagtint/stylesheet"
)

// styleMessage is pushed to websocket clients.
type styleMessage struct {
	Type     string         `json:"type"`
	Snapshot style.Snapshot `json:"snapshot"`
	CSS      string         `json:"css"`
}

type tagColorRequest struct {
	Color string `json:"color" validate:"required,hexcolor6"`
}

type activeRequest struct {
	Path string   `json:"path"`
	Tags []string `json:"tags"`
}

type accentVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// JobReporter reports when each periodic job last completed.
type JobReporter interface {
	LastRun() map[string]time.Time
}

type jobStatus struct {
	Name    string    `json:"name"`
	LastRun time.Time `json:"last_run"`
}

type Server struct {
	plugin   *plugin.Plugin
	registry *style.Registry
	source   stylesheet.Source
	jobs     JobReporter
	ws       *WSConnectionManager
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewServer builds the API. jobs may be nil when nothing runs periodically.
func NewServer(p *plugin.Plugin, registry *style.Registry, source stylesheet.Source, jobs JobReporter, log *logger.Logger) *Server {
	log = log.Component("api")
	return &Server{
		plugin:   p,
		registry: registry,
		source:   source,
		jobs:     jobs,
		ws:       NewWSConnectionManager(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameHostOrigin,
		},
		log: log,
	}
}

// Register mounts the handlers on mux and starts forwarding registry changes
// to websocket clients. The returned function stops the forwarding and
// closes every client.
func (s *Server) Register(mux *http.ServeMux) func() {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/styles", s.handleStyles)
	mux.HandleFunc("/api/styles/blocks", s.handleStyleBlocks)
	mux.HandleFunc("/api/tags", s.handleTags)
	mux.HandleFunc("/api/tags/", s.handleTagByName)
	mux.HandleFunc("/api/active", s.handleActive)
	mux.HandleFunc("/api/accents", s.handleAccents)
	mux.HandleFunc("/api/ws", s.handleWS)

	unsubscribe := s.registry.Subscribe(func(snap style.Snapshot) {
		s.ws.Broadcast(newStyleMessage(snap))
	})
	return func() {
		unsubscribe()
		s.ws.CloseAll()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jobs := []jobStatus{}
	if s.jobs != nil {
		for name, at := range s.jobs.LastRun() {
			jobs = append(jobs, jobStatus{Name: name, LastRun: at})
		}
		sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ws.Len(),
		"jobs":    jobs,
	})
}

// ---------- styles ----------

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(s.registry.CSS()))
}

func (s *Server) handleStyleBlocks(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Snapshot())
}

func (s *Server) handleAccents(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	names := stylesheet.Discover(s.source)
	out := make([]accentVariable, 0, len(names))
	for _, name := range names {
		out = append(out, accentVariable{Name: name, Value: s.source.Resolve(name)})
	}
	writeJSON(w, http.StatusOK, out)
}

// ---------- tags ----------

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.plugin.TagColors())
	case http.MethodPut:
		var colors map[string]string
		if err := decodeJSON(w, r, &colors); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.plugin.ReplaceTagColors(colors); err != nil {
			s.writeCommitError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.plugin.TagColors())
	default:
		allowMethods(w, r, http.MethodGet, http.MethodPut)
	}
}

func (s *Server) handleTagByName(w http.ResponseWriter, r *http.Request) {
	tag, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/api/tags/"))
	if err != nil || strings.TrimSpace(tag) == "" {
		http.Error(w, "missing tag", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req tagColorRequest
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := config.Validator().Struct(req); err != nil {
			http.Error(w, "color must be #rrggbb", http.StatusBadRequest)
			return
		}
		if err := s.plugin.SetTagColor(tag, req.Color); err != nil {
			s.writeCommitError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.plugin.TagColors())
	case http.MethodDelete:
		if err := s.plugin.RemoveTagColor(tag); err != nil {
			s.writeCommitError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		allowMethods(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) writeCommitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, plugin.ErrNotStarted):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, plugin.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error(err, "save tag colors")
		http.Error(w, "failed to save tag colors", http.StatusInternalServerError)
	}
}

// ---------- active document ----------

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.plugin.Active())
	case http.MethodPost:
		var req activeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		var err error
		if req.Path != "" {
			err = s.plugin.OpenDocument(req.Path)
		} else {
			err = s.plugin.SetActiveTags(req.Tags)
		}
		if err != nil {
			if errors.Is(err, plugin.ErrNotStarted) {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s.plugin.Active())
	case http.MethodDelete:
		if err := s.plugin.ClearActive(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		allowMethods(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

// ---------- websocket ----------

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error(err, "websocket upgrade")
		return
	}

	id := uuid.NewString()
	s.ws.Add(id, conn)
	clientLog := s.log.WithFields(map[string]any{"client": id})
	clientLog.Debug("websocket client connected")

	defer func() {
		s.ws.Remove(conn)
		clientLog.Debug("websocket client disconnected")
	}()

	if !s.ws.Send(conn, newStyleMessage(s.registry.Snapshot())) {
		return
	}

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func newStyleMessage(snap style.Snapshot) styleMessage {
	return styleMessage{Type: "styles", Snapshot: snap, CSS: snap.CSS()}
}

// sameHostOrigin accepts requests without an Origin header and those whose
// Origin host matches the request host.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	// Electron-based note apps load from app:// or file:// origins.
	return u.Scheme == "app" || u.Scheme == "file" || u.Scheme == "capacitor"
}

// ---------- helpers ----------

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
