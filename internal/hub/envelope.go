// ABOUTME: Wire format for the WebSocket control channel.
// ABOUTME: Named-event JSON envelopes plus the payload shapes for each event.

package hub

import "encoding/json"

// Event names carried in envelopes. Agents and dashboards share one
// vocabulary; the hub routes by name.
const (
	EventRegisterAgents        = "register-agents"
	EventRegisterAgentsSuccess = "register-agents-success"
	EventRegisterAgentsError   = "register-agents-error"
	EventLoginAgent            = "login-agent"
	EventLogoutAgent           = "logout-agent"
	EventChatMessage           = "chat-message"
	EventSendMessage           = "send-message"
	EventStartAgent            = "start-agent"
	EventStopAgent             = "stop-agent"
	EventRestartAgent          = "restart-agent"
	EventStopAllAgents         = "stop-all-agents"
	EventShutdown              = "shutdown"
	EventRequestStatus         = "request-status"
	EventStatusResponse        = "status-response"
	EventStatusError           = "status-error"
	EventAgentsUpdate          = "agents-update"
	EventActionLog             = "action-log"
	EventStatusLog             = "status-log"
	EventActionLogHistory      = "action-log-history"
	EventStatusLogHistory      = "status-log-history"
	EventTableUpdate           = "table-update"
)

// Envelope is one framed message on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// loginPayload accompanies login-agent. ID is the agent process's own
// session counter, kept for display.
type loginPayload struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// namePayload accompanies logout/start/stop/restart events.
type namePayload struct {
	Name string `json:"name"`
}

// chatPayload accompanies chat-message: a structured bot-to-bot message.
type chatPayload struct {
	AgentName string          `json:"agentName"`
	From      string          `json:"from,omitempty"`
	Message   json.RawMessage `json:"message"`
}

// textPayload accompanies send-message: plain text pushed to a bot.
type textPayload struct {
	AgentName string `json:"agentName"`
	Message   string `json:"message"`
}

// requestStatusPayload is sent to an agent's live channel to ask for a
// fresh snapshot.
type requestStatusPayload struct {
	RequestID string `json:"requestId"`
	Name      string `json:"name,omitempty"`
}

// statusResponsePayload carries an agent's reply to request-status.
type statusResponsePayload struct {
	RequestID string          `json:"requestId"`
	Status    json.RawMessage `json:"status,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// errorPayload reports a rejected operation back to the sender.
type errorPayload struct {
	Message string `json:"message"`
}
