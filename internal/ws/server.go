package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ytanalyzer/oauth-relay/internal/session"
)

const (
	serviceName    = "OAuth Relay Service"
	serviceVersion = "1.0.0"
)

// Server is the relay's HTTP surface: the provider-facing callback,
// the two client delivery paths (poll + WebSocket), and the
// health/descriptor endpoints.
type Server struct {
	store     *session.Store
	registry  *Registry
	keepAlive time.Duration
	proc      *process.Process
}

func NewServer(store *session.Store, registry *Registry, keepAlive time.Duration) *Server {
	s := &Server{
		store:     store,
		registry:  registry,
		keepAlive: keepAlive,
	}
	// Self-handle for /health process metrics; nil just omits them.
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	}
	return s
}

// Routes builds the full handler chain. CORS is wide open on every
// endpoint: the relay's clients are arbitrary local applications with
// unpredictable origins.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	mux.HandleFunc("/poll/", s.handlePoll)
	mux.HandleFunc("/ws/", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)
	return corsHeaders(securityHeaders(mux))
}

// sweep lazily evicts expired sessions and their notification
// channels. Called at the top of every store-touching handler instead
// of from a background timer.
func (s *Server) sweep() {
	if ids := s.store.Sweep(time.Now()); len(ids) > 0 {
		log.Printf("swept %d expired session(s)", len(ids))
		s.registry.DropSessions(ids)
	}
}

// handleCallback receives the provider redirect. With a code it
// resolves the session successfully; with an error it resolves it as
// failed; with neither it only registers the session. Either way the
// session record survives this handler. Deletion belongs to the
// consumer paths, so the code is handed out at most once via poll.
//
// The state parameter is accepted and passed over: any anti-CSRF
// validation of it is the initiating client's responsibility, since
// the relay never generated it and has nothing to check it against.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	s.sweep()

	q := r.URL.Query()
	id := q.Get("session")
	if id == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}

	switch {
	case q.Get("code") != "":
		o := s.store.SetSuccess(id, q.Get("code"))
		s.registry.Broadcast(id, o)
		writeHTML(w, http.StatusOK, successPage)

	case q.Get("error") != "":
		msg := q.Get("error_description")
		if msg == "" {
			msg = q.Get("error")
		}
		o := s.store.SetFailure(id, msg)
		s.registry.Broadcast(id, o)
		writeHTML(w, http.StatusBadRequest, errorPage(o.Err))

	default:
		// Pre-registration ping from the local app.
		s.store.GetOrCreate(id)
		writeHTML(w, http.StatusOK, waitingPage)
	}
}

// handlePoll is the pull path. A terminal outcome is a destructive
// read: the response deletes the record, and every later poll gets
// 404. Unknown, consumed and expired sessions are deliberately
// indistinguishable.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromPath(w, r, "/poll/")
	if !ok {
		return
	}

	s.sweep()

	o, found := s.store.TakeTerminal(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"detail": "Session not found or expired",
		})
		return
	}
	writeJSON(w, http.StatusOK, outcomeMessage(o))
}

// handleWS upgrades the connection and runs the wait loop until the
// outcome is delivered, the session expires, or the peer goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromPath(w, r, "/ws/")
	if !ok {
		return
	}

	s.sweep()

	upgrader := websocket.Upgrader{
		// Origin is not restricted, same policy as the CORS layer.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c, err := s.registry.Add(id, conn)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		conn.Close()
		return
	}

	s.store.GetOrCreate(id)
	s.serveNotifications(id, c)
}

// serveNotifications is the per-connection state machine. Incoming
// peer messages are liveness traffic only; every keep-alive interval
// the session is re-checked and the peer told it is still waiting, or
// that the session expired. The channel unregisters itself on every
// exit path.
func (s *Server) serveNotifications(id string, c *client) {
	defer func() {
		s.registry.Remove(id, c)
	}()

	// Reconnect after resolution: deliver immediately.
	if o, ok := s.store.Peek(id); ok && o.Terminal() {
		c.enqueue(outcomeMessage(o))
		return
	}

	recv := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.conn.ReadMessage(); err != nil {
				// Covers graceful close and protocol faults alike;
				// both just end the wait loop.
				return
			}
			select {
			case recv <- struct{}{}:
			default:
			}
		}
	}()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case o := <-c.notify:
			c.enqueue(outcomeMessage(o))
			return
		case <-recv:
			// Peer liveness message, content ignored.
		case <-ticker.C:
			s.sweep()
			if _, ok := s.store.Peek(id); !ok {
				c.enqueue(expiredMessage)
				return
			}
			c.enqueue(waitingMessage)
		case <-done:
			return
		}

		// A poll-resolved or broadcast-missed outcome is still caught
		// here after every peer message and keep-alive cycle.
		if o, ok := s.store.Peek(id); ok && o.Terminal() {
			c.enqueue(outcomeMessage(o))
			return
		}
	}
}

type processMetrics struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

type healthResponse struct {
	Status           string          `json:"status"`
	ActiveSessions   int             `json:"active_sessions"`
	ActiveWebsockets int             `json:"active_websockets"`
	Process          *processMetrics `json:"process,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sweep()

	resp := healthResponse{
		Status:           "ok",
		ActiveSessions:   s.store.Len(),
		ActiveWebsockets: s.registry.ClientCount(),
	}
	if s.proc != nil {
		if mem, err := s.proc.MemoryInfo(); err == nil {
			cpu, _ := s.proc.CPUPercent()
			resp.Process = &processMetrics{RSSBytes: mem.RSS, CPUPercent: cpu}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service":     serviceName,
		"version":     serviceVersion,
		"description": "Privacy-focused OAuth callback relay",
		"health":      "/health",
	})
}

// sessionIDFromPath extracts the trailing session id from prefix-style
// routes like /poll/{id}. Writes the error response itself when the id
// is missing or malformed.
func sessionIDFromPath(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return "", false
	}
	id, err := url.PathUnescape(raw)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeHTML(w http.ResponseWriter, status int, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, page); err != nil {
		log.Printf("write response: %v", err)
	}
}

func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		// The result pages carry their styles inline.
		h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe runs the relay until ctx is cancelled, then drains
// in-flight requests before returning.
func ListenAndServe(ctx context.Context, host string, port int, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
