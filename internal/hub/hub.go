// ABOUTME: WebSocket hub routing fleet events between agent processes, in-game
// ABOUTME: sessions, and dashboards; owns the control and live channel bindings.

package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minefleet/fleet-hub/internal/eventlog"
	"github.com/minefleet/fleet-hub/internal/registry"
	"github.com/minefleet/fleet-hub/internal/tables"
)

// ErrNotConnected indicates no live channel is bound for the agent name.
var ErrNotConnected = errors.New("agent not connected")

// StatusHandler receives status replies read off agent connections. The
// status service implements this over its correlation table.
type StatusHandler interface {
	HandleResponse(requestID string, status json.RawMessage) bool
	HandleError(requestID, message string) bool
}

// AgentSummary is one row of the agents-update broadcast.
type AgentSummary struct {
	Name          string          `json:"name"`
	InGame        bool            `json:"in_game"`
	ID            string          `json:"id,omitempty"`
	Status        registry.Status `json:"status"`
	LastHeartbeat *time.Time      `json:"lastHeartbeat,omitempty"`
}

// Hub owns every active connection and the name-to-connection bindings.
// The control binding points at the process that registered an agent name;
// the live binding points at the in-game session logged in under it.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*Conn
	control map[string]*Conn
	live    map[string]*Conn

	registry  *registry.Registry
	actionLog *eventlog.Log
	statusLog *eventlog.Log

	status   StatusHandler
	shutdown func()

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Hub over the given registry and logs.
func New(reg *registry.Registry, actionLog, statusLog *eventlog.Log, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:     make(map[string]*Conn),
		control:   make(map[string]*Conn),
		live:      make(map[string]*Conn),
		registry:  reg,
		actionLog: actionLog,
		statusLog: statusLog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "hub"),
	}
}

// SetStatusHandler installs the sink for status-response/status-error
// events. Must be called before ServeHTTP is reachable.
func (h *Hub) SetStatusHandler(s StatusHandler) {
	h.status = s
}

// SetShutdownFunc installs the callback run when a shutdown event arrives.
func (h *Hub) SetShutdownFunc(fn func()) {
	h.shutdown = fn
}

// ServeHTTP upgrades the request and runs the connection's read loop. Every
// connection receives the current agents snapshot and both log tails
// immediately, then all subsequent broadcasts.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := newConn(ws)
	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()

	h.logger.Info("client connected", "conn_id", conn.id, "remote", r.RemoteAddr)
	h.replay(conn)

	go h.readLoop(conn)
}

// replay pushes the connect-time batch: agents snapshot plus both capped
// log tails.
func (h *Hub) replay(conn *Conn) {
	h.sendAgents(conn)
	if err := conn.Send(EventActionLogHistory, h.actionLog.Snapshot()); err != nil {
		h.logger.Warn("replay failed", "conn_id", conn.id, "error", err)
		return
	}
	if err := conn.Send(EventStatusLogHistory, h.statusLog.Snapshot()); err != nil {
		h.logger.Warn("replay failed", "conn_id", conn.id, "error", err)
	}
}

func (h *Hub) readLoop(conn *Conn) {
	defer h.disconnect(conn)

	for {
		_, msg, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read failed", "conn_id", conn.id, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			h.logger.Warn("malformed envelope", "conn_id", conn.id, "error", err)
			continue
		}
		h.dispatch(conn, env)
	}
}

// dispatch routes one inbound envelope. Handlers run to completion on the
// connection's read goroutine; a handler failure never tears the loop down.
func (h *Hub) dispatch(conn *Conn, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("handler panicked", "event", env.Event, "panic", r)
		}
	}()

	// Any traffic from a logged-in agent counts as a heartbeat.
	if name := conn.AgentName(); name != "" {
		h.registry.Touch(name)
	}

	switch env.Event {
	case EventRegisterAgents:
		h.handleRegister(conn, env.Data)
	case EventLoginAgent:
		h.handleLogin(conn, env.Data)
	case EventLogoutAgent:
		h.handleLogout(env.Data)
	case EventChatMessage:
		h.handleChat(conn, env.Data)
	case EventSendMessage:
		h.handleSendMessage(env.Data)
	case EventStartAgent:
		h.handleControlForward(EventStartAgent, env.Data)
	case EventStopAgent:
		h.handleControlForward(EventStopAgent, env.Data)
	case EventRestartAgent:
		h.handleRestart(env.Data)
	case EventStopAllAgents:
		h.StopAll()
	case EventShutdown:
		h.handleShutdown()
	case EventRequestStatus:
		h.handleRequestStatus(conn, env.Data)
	case EventStatusResponse, EventStatusError:
		h.handleStatusReply(env.Event, env.Data)
	default:
		h.logger.Warn("unknown event", "event", env.Event, "conn_id", conn.id)
	}
}

func (h *Hub) handleRegister(conn *Conn, data json.RawMessage) {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		h.logger.Warn("bad register-agents payload", "error", err)
		return
	}

	if _, err := h.registry.Register(names); err != nil {
		h.logger.Warn("registration rejected", "names", names, "error", err)
		_ = conn.Send(EventRegisterAgentsError, errorPayload{Message: err.Error()})
		return
	}

	h.mu.Lock()
	for _, name := range names {
		if prev, ok := h.control[name]; ok && prev != conn {
			h.logger.Warn("control binding replaced", "name", name, "prev_conn", prev.id, "conn", conn.id)
		}
		h.control[name] = conn
	}
	h.mu.Unlock()

	_ = conn.Send(EventRegisterAgentsSuccess, nil)
	h.BroadcastAgents()
}

func (h *Hub) handleLogin(conn *Conn, data json.RawMessage) {
	var p loginPayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.Warn("bad login-agent payload", "error", err)
		return
	}

	if cur := conn.AgentName(); cur != "" && cur != p.Name {
		h.logger.Warn("connection already logged in", "name", p.Name, "current", cur)
		return
	}

	// The live binding is published only after the registry accepts the
	// login, all under h.mu, so a failed login leaves no trace.
	h.mu.Lock()
	if prev, ok := h.live[p.Name]; ok && prev != conn {
		h.mu.Unlock()
		h.logger.Warn("agent already logged in elsewhere", "name", p.Name, "conn", prev.id)
		return
	}
	if err := h.registry.Login(p.Name, p.ID); err != nil {
		h.mu.Unlock()
		h.logger.Warn("login failed", "name", p.Name, "error", err)
		return
	}
	h.live[p.Name] = conn
	h.mu.Unlock()

	conn.setAgentName(p.Name)
	h.logger.Info("agent logged in", "name", p.Name, "conn_id", conn.id)
	h.BroadcastAgents()
}

func (h *Hub) handleLogout(data json.RawMessage) {
	var p namePayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.Warn("bad logout-agent payload", "error", err)
		return
	}

	h.mu.Lock()
	conn, ok := h.live[p.Name]
	if ok {
		delete(h.live, p.Name)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	conn.setAgentName("")
	if err := h.registry.Logout(p.Name); err != nil {
		h.logger.Warn("logout failed", "name", p.Name, "error", err)
	}
	h.logger.Info("agent logged out", "name", p.Name)
	h.BroadcastAgents()
}

// disconnect prunes every binding pointing at the connection. Registry
// records survive; only live status changes.
func (h *Hub) disconnect(conn *Conn) {
	_ = conn.close()

	h.mu.Lock()
	delete(h.conns, conn.id)
	var loggedOut []string
	for name, c := range h.live {
		if c == conn {
			delete(h.live, name)
			loggedOut = append(loggedOut, name)
		}
	}
	for name, c := range h.control {
		if c == conn {
			delete(h.control, name)
		}
	}
	h.mu.Unlock()

	for _, name := range loggedOut {
		if err := h.registry.Logout(name); err != nil {
			h.logger.Warn("logout on disconnect failed", "name", name, "error", err)
		}
	}

	h.logger.Info("client disconnected", "conn_id", conn.id, "logged_out", loggedOut)
	if len(loggedOut) > 0 {
		h.BroadcastAgents()
	}
}

func (h *Hub) handleChat(conn *Conn, data json.RawMessage) {
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.Warn("bad chat-message payload", "error", err)
		return
	}

	h.mu.RLock()
	target, ok := h.live[p.AgentName]
	h.mu.RUnlock()
	if !ok {
		h.logger.Warn("chat to agent that is not logged in", "name", p.AgentName)
		return
	}

	p.From = conn.AgentName()
	if err := target.Send(EventChatMessage, p); err != nil {
		h.logger.Warn("chat delivery failed", "name", p.AgentName, "error", err)
	}
}

func (h *Hub) handleSendMessage(data json.RawMessage) {
	var p textPayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.Warn("bad send-message payload", "error", err)
		return
	}
	if err := h.MessageAgent(p.AgentName, p.Message); err != nil {
		h.logger.Warn("send-message failed", "name", p.AgentName, "error", err)
	}
}

func (h *Hub) handleControlForward(event string, data json.RawMessage) {
	var p namePayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.Warn("bad payload", "event", event, "error", err)
		return
	}

	var err error
	if event == EventStartAgent {
		err = h.StartAgent(p.Name)
	} else {
		err = h.StopAgent(p.Name)
	}
	if err != nil {
		h.logger.Warn("control forward failed", "event", event, "name", p.Name, "error", err)
	}
}

func (h *Hub) handleRestart(data json.RawMessage) {
	var p namePayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.Warn("bad restart-agent payload", "error", err)
		return
	}

	h.mu.RLock()
	conn, ok := h.live[p.Name]
	h.mu.RUnlock()
	if !ok {
		h.logger.Warn("restart for agent that is not logged in", "name", p.Name)
		return
	}
	if err := conn.Send(EventRestartAgent, nil); err != nil {
		h.logger.Warn("restart delivery failed", "name", p.Name, "error", err)
	}
}

func (h *Hub) handleShutdown() {
	h.logger.Info("shutdown requested")

	h.mu.RLock()
	seen := make(map[*Conn]bool)
	for _, conn := range h.control {
		seen[conn] = true
	}
	h.mu.RUnlock()

	for conn := range seen {
		_ = conn.Send(EventShutdown, nil)
	}
	if h.shutdown != nil {
		h.shutdown()
	}
}

func (h *Hub) handleRequestStatus(conn *Conn, data json.RawMessage) {
	// Dashboards normally fetch status over HTTP; replies flow back on the
	// requesting connection here.
	var p namePayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.Warn("bad request-status payload", "error", err)
		return
	}
	h.logger.Warn("request-status over websocket is not routed", "name", p.Name, "conn_id", conn.id)
}

func (h *Hub) handleStatusReply(event string, data json.RawMessage) {
	if h.status == nil {
		return
	}

	var p statusResponsePayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.Warn("bad status reply payload", "event", event, "error", err)
		return
	}

	if event == EventStatusError {
		h.status.HandleError(p.RequestID, p.Error)
		return
	}
	h.status.HandleResponse(p.RequestID, p.Status)
}

// RequestStatus pushes a request-status event to the agent's live channel.
// Returns false when no live channel is bound.
func (h *Hub) RequestStatus(name, requestID string) bool {
	h.mu.RLock()
	conn, ok := h.live[name]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	err := conn.Send(EventRequestStatus, requestStatusPayload{RequestID: requestID, Name: name})
	if err != nil {
		h.logger.Warn("request-status delivery failed", "name", name, "error", err)
		return false
	}
	return true
}

// LiveConnected reports whether a live channel is bound for the name.
func (h *Hub) LiveConnected(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.live[name]
	return ok
}

// MessageAgent pushes a plain text message to the agent's live channel.
func (h *Hub) MessageAgent(name, message string) error {
	h.mu.RLock()
	conn, ok := h.live[name]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, name)
	}
	return conn.Send(EventSendMessage, textPayload{AgentName: name, Message: message})
}

// StartAgent forwards a start signal to the agent's control channel.
func (h *Hub) StartAgent(name string) error {
	return h.forwardControl(EventStartAgent, name)
}

// StopAgent forwards a stop signal to the agent's control channel.
func (h *Hub) StopAgent(name string) error {
	return h.forwardControl(EventStopAgent, name)
}

func (h *Hub) forwardControl(event, name string) error {
	h.mu.RLock()
	conn, ok := h.control[name]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no control channel for %s", ErrNotConnected, name)
	}
	return conn.Send(event, namePayload{Name: name})
}

// StopAll sends a stop signal for every agent with a live channel.
func (h *Hub) StopAll() {
	h.mu.RLock()
	names := make([]string, 0, len(h.live))
	for name := range h.live {
		names = append(names, name)
	}
	h.mu.RUnlock()

	h.logger.Info("stopping all agents", "count", len(names))
	for _, name := range names {
		if err := h.StopAgent(name); err != nil {
			h.logger.Warn("stop-all delivery failed", "name", name, "error", err)
		}
	}
}

// Records implements the command environment's view of the fleet.
func (h *Hub) Records() []registry.Record {
	return h.registry.List()
}

// BroadcastAgents pushes the current agents snapshot to every connection.
func (h *Hub) BroadcastAgents() {
	h.broadcast(EventAgentsUpdate, h.agentSummaries())
}

func (h *Hub) sendAgents(conn *Conn) {
	if err := conn.Send(EventAgentsUpdate, h.agentSummaries()); err != nil {
		h.logger.Warn("agents-update delivery failed", "conn_id", conn.id, "error", err)
	}
}

func (h *Hub) agentSummaries() []AgentSummary {
	records := h.registry.List()

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]AgentSummary, 0, len(records))
	for _, rec := range records {
		_, inGame := h.live[rec.Name]
		summary := AgentSummary{
			Name:   rec.Name,
			InGame: inGame,
			ID:     rec.ID,
			Status: rec.Status,
		}
		if !rec.LastHeartbeat.IsZero() {
			hb := rec.LastHeartbeat
			summary.LastHeartbeat = &hb
		}
		out = append(out, summary)
	}
	return out
}

// NotifyLog broadcasts a newly appended log entry to every connection.
func (h *Hub) NotifyLog(name string, entry eventlog.Entry) {
	h.broadcast(name, entry)
}

// NotifyTable broadcasts a table change. A nil table announces deletion.
func (h *Hub) NotifyTable(name string, tbl *tables.Table) {
	payload := map[string]any{"name": name}
	if tbl == nil {
		payload["deleted"] = true
	} else {
		payload["info"] = tbl.Info
		payload["data"] = tbl.Data()
	}
	h.broadcast(EventTableUpdate, payload)
}

func (h *Hub) broadcast(event string, payload any) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.Send(event, payload); err != nil {
			h.logger.Warn("broadcast failed", "event", event, "conn_id", c.id, "error", err)
		}
	}
}

// Close tears down every connection. Used during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Conn)
	h.control = make(map[string]*Conn)
	h.live = make(map[string]*Conn)
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.close()
	}
}
