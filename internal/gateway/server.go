// Package gateway is the network-facing endpoint: it multiplexes terminal
// sessions over WebSocket and exposes the REST surface consumed by the
// non-terminal UI widgets.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"termdeck/internal/dbpool"
	apperr "termdeck/internal/errors"
	"termdeck/internal/history"
	"termdeck/internal/protocol"
	"termdeck/internal/session"
	"termdeck/internal/watcher"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow localhost origins for dev.
	},
}

// Server routes WebSocket events between clients and the session registry,
// and serves the REST API.
type Server struct {
	registry *session.Registry
	pools    *dbpool.Manager
	hist     *history.Store
	watch    *watcher.Watcher

	staticDir   string
	serveStatic bool
	log         *slog.Logger

	clients   map[*client]bool
	clientsMu sync.RWMutex

	// attachments tracks which sessions each client is attached to.
	// key: client, value: map[sessionID]subscriptionID
	attachments   map[*client]map[string]string
	attachmentsMu sync.Mutex
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server

	// done is closed exactly once when the client is removed. The send
	// channel itself is never closed: forwarder goroutines may still be
	// draining buffered session output after removal.
	done chan struct{}
}

// New creates a gateway server. hist and watch may be nil (features off).
func New(registry *session.Registry, pools *dbpool.Manager, hist *history.Store, watch *watcher.Watcher, staticDir string, serveStatic bool, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		registry:    registry,
		pools:       pools,
		hist:        hist,
		watch:       watch,
		staticDir:   staticDir,
		serveStatic: serveStatic,
		log:         log.With("component", "gateway"),
		clients:     make(map[*client]bool),
		attachments: make(map[*client]map[string]string),
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint.
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Terminal REST endpoints.
	mux.HandleFunc("POST /terminal/exec", s.handleExec)
	mux.HandleFunc("POST /terminal/browse", s.handleBrowse)
	mux.HandleFunc("POST /terminal/run", s.handleRun)
	mux.HandleFunc("GET /terminal/history", s.handleHistory)

	// Database REST endpoints.
	mux.HandleFunc("POST /database/connect", s.handleDBConnect)
	mux.HandleFunc("POST /database/query", s.handleDBQuery)
	mux.HandleFunc("POST /database/disconnect", s.handleDBDisconnect)
	mux.HandleFunc("GET /database/connections", s.handleDBList)

	// Session management.
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Static file serving.
	if s.serveStatic && s.staticDir != "" {
		fileServer := http.FileServer(http.Dir(s.staticDir))
		mux.Handle("/", fileServer)
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleWebSocket upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
		done:   make(chan struct{}),
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()

	s.attachmentsMu.Lock()
	s.attachments[c] = make(map[string]string)
	s.attachmentsMu.Unlock()

	go c.writePump()
	go c.readPump()
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.log.Warn("websocket read failed", "err", err)
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// removeClient cleans up a disconnected client. Its sessions keep running
// in the background. done is closed before the subscriptions are torn down
// so in-flight forwarders stop delivering to the dead connection.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()

	close(c.done)

	s.attachmentsMu.Lock()
	attached := s.attachments[c]
	delete(s.attachments, c)
	s.attachmentsMu.Unlock()

	for sessionID, subID := range attached {
		s.registry.Unsubscribe(sessionID, subID)
		s.updateVisibility(sessionID)
	}
}

// handleMessage validates and dispatches a client event. Protocol errors
// are reported to the offending client only; they never crash the gateway.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, "", apperr.CodeInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeCreate:
		s.handleWSCreate(c, msg)
	case protocol.TypeInput:
		s.handleWSInput(c, msg)
	case protocol.TypeResize:
		s.handleWSResize(c, msg)
	case protocol.TypeKill:
		s.handleWSKill(c, msg)
	case protocol.TypeAttach:
		s.handleWSAttach(c, msg)
	case protocol.TypeDetach:
		s.handleWSDetach(c, msg)
	}
}

func (s *Server) handleWSCreate(c *client, msg *protocol.Message) {
	var payload protocol.CreatePayload
	json.Unmarshal(msg.Payload, &payload)

	sess, err := s.registry.Create(session.Kind(payload.ShellKind), payload.Cwd)
	if err != nil {
		s.sendError(c, "", apperr.CodeOf(err), err.Error())
		return
	}

	if s.watch != nil {
		if err := s.watch.Watch(sess.ID, sess.Cwd); err != nil {
			s.log.Warn("cwd watch failed", "id", sess.ID, "err", err)
		}
	}

	// The requester is attached immediately; other clients attach on demand.
	s.attach(c, sess.ID)

	resp, _ := protocol.NewMessage(protocol.TypeCreated, protocol.CreatedPayload{ID: sess.ID})
	s.send(c, resp)
}

func (s *Server) handleWSInput(c *client, msg *protocol.Message) {
	var payload protocol.InputPayload
	json.Unmarshal(msg.Payload, &payload)

	if err := s.registry.Write(payload.ID, []byte(payload.Data)); err != nil {
		s.sendError(c, payload.ID, apperr.CodeOf(err), err.Error())
	}
}

func (s *Server) handleWSResize(c *client, msg *protocol.Message) {
	var payload protocol.ResizePayload
	json.Unmarshal(msg.Payload, &payload)

	if err := s.registry.Resize(payload.ID, payload.Cols, payload.Rows); err != nil {
		s.sendError(c, payload.ID, apperr.CodeOf(err), err.Error())
	}
}

func (s *Server) handleWSKill(c *client, msg *protocol.Message) {
	var payload protocol.SessionIDPayload
	json.Unmarshal(msg.Payload, &payload)

	s.registry.Remove(payload.ID)
}

func (s *Server) handleWSAttach(c *client, msg *protocol.Message) {
	var payload protocol.SessionIDPayload
	json.Unmarshal(msg.Payload, &payload)

	if err := s.attach(c, payload.ID); err != nil {
		s.sendError(c, payload.ID, apperr.CodeOf(err), err.Error())
	}
}

func (s *Server) handleWSDetach(c *client, msg *protocol.Message) {
	var payload protocol.SessionIDPayload
	json.Unmarshal(msg.Payload, &payload)

	s.detach(c, payload.ID)
}

// attach subscribes a client to a session's output. No past output is
// replayed; the client sees only what the shell produces from now on.
// Attaching a client that has already been removed is a no-op: the
// attachments entry is never re-created once removeClient deleted it.
func (s *Server) attach(c *client, sessionID string) error {
	s.attachmentsMu.Lock()
	attached, active := s.attachments[c]
	if !active {
		s.attachmentsMu.Unlock()
		return nil
	}
	if _, exists := attached[sessionID]; exists {
		s.attachmentsMu.Unlock()
		return nil // Already attached.
	}
	s.attachmentsMu.Unlock()

	subID, ch, err := s.registry.Subscribe(sessionID)
	if err != nil {
		return err
	}

	s.attachmentsMu.Lock()
	attached, active = s.attachments[c]
	if !active {
		// Client went away between the check and the subscribe.
		s.attachmentsMu.Unlock()
		s.registry.Unsubscribe(sessionID, subID)
		return nil
	}
	attached[sessionID] = subID
	s.attachmentsMu.Unlock()

	s.registry.SetVisible(sessionID, true)

	// Forward output until the session ends or the client detaches.
	go func() {
		for event := range ch {
			switch event.Kind {
			case session.EventData:
				msg, _ := protocol.NewMessage(protocol.TypeData, protocol.DataPayload{
					ID:    sessionID,
					Chunk: event.Chunk,
				})
				s.send(c, msg)

			case session.EventExit:
				msg, _ := protocol.NewMessage(protocol.TypeExit, protocol.ExitPayload{
					ID:   sessionID,
					Code: event.ExitCode,
				})
				s.send(c, msg)
			}
		}

		s.attachmentsMu.Lock()
		if attached, ok := s.attachments[c]; ok {
			delete(attached, sessionID)
		}
		s.attachmentsMu.Unlock()
	}()

	return nil
}

// detach unsubscribes a client from a session without affecting the shell.
func (s *Server) detach(c *client, sessionID string) {
	s.attachmentsMu.Lock()
	subID, ok := s.attachments[c][sessionID]
	if ok {
		delete(s.attachments[c], sessionID)
	}
	s.attachmentsMu.Unlock()

	if !ok {
		return
	}

	s.registry.Unsubscribe(sessionID, subID)
	s.updateVisibility(sessionID)
}

// updateVisibility recomputes whether any client is still attached.
func (s *Server) updateVisibility(sessionID string) {
	s.attachmentsMu.Lock()
	attached := false
	for _, subs := range s.attachments {
		if _, ok := subs[sessionID]; ok {
			attached = true
			break
		}
	}
	s.attachmentsMu.Unlock()

	s.registry.SetVisible(sessionID, attached)
}

// OnDirChange pushes an fs.change event to every client attached to the
// session whose working directory changed. Wired to the watcher callback.
func (s *Server) OnDirChange(sessionID, path string) {
	msg, err := protocol.NewMessage(protocol.TypeFsChange, protocol.FsChangePayload{
		ID:   sessionID,
		Path: path,
	})
	if err != nil {
		return
	}

	s.attachmentsMu.Lock()
	targets := make([]*client, 0)
	for c, subs := range s.attachments {
		if _, ok := subs[sessionID]; ok {
			targets = append(targets, c)
		}
	}
	s.attachmentsMu.Unlock()

	for _, c := range targets {
		s.send(c, msg)
	}
}

func (s *Server) send(c *client, msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case <-c.done:
		// Client already removed.
	case c.send <- data:
	default:
		// Client buffer full, skip.
	}
}

func (s *Server) sendError(c *client, sessionID string, code apperr.Code, reason string) {
	msg, _ := protocol.NewErrorMessage(sessionID, string(code), reason)
	data, _ := json.Marshal(msg)
	select {
	case <-c.done:
	case c.send <- data:
	default:
	}
}
