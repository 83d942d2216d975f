package rpc

import (
	"encoding/json"

	"github.com/huhlig/wyldlands-gw/internal/model"
)

// Envelope type tags for SessionToWorld (Gateway→World, §4.6).
const (
	TypeAuthenticateSession = "session.authenticate_session"
	TypeCheckUsername       = "session.check_username"
	TypeCreateAccount       = "session.create_account"
	TypeSendInput           = "session.send_input"
	TypeSessionHeartbeat    = "session.session_heartbeat"
	TypeSessionDisconnected = "session.session_disconnected"
	TypeSessionReconnected  = "session.session_reconnected"
)

// Envelope type tags for WorldToSession (World→Gateway, §4.6).
const (
	TypeSendOutput          = "world.send_output"
	TypeSendPrompt          = "world.send_prompt"
	TypeEntityStateChanged  = "world.entity_state_changed"
	TypeSessionStateChanged = "world.session_state_changed"
	TypeDisconnectSession   = "world.disconnect_session"
)

// Envelope type tags for GatewayManagement (mutual, §4.6).
const (
	TypeAuthenticateGateway = "mgmt.authenticate_gateway"
	TypeGatewayHeartbeat    = "mgmt.gateway_heartbeat"
	TypeGatewayProperties   = "mgmt.gateway_properties"
	TypeServerStatistics    = "mgmt.server_statistics"
)

// --- SessionToWorld payloads ---

type AuthenticateSessionRequest struct {
	SessionID model.SessionId `json:"session_id"`
	Username  string          `json:"username"`
	Password  string          `json:"password"`
}

type AuthenticateSessionResponse struct {
	Accepted  bool                      `json:"accepted"`
	AccountID *model.PersistentEntityId `json:"account_id,omitempty"`
	Avatars   []model.AvatarSummary     `json:"avatars,omitempty"`
	Reason    string                    `json:"reason,omitempty"`
}

type CheckUsernameRequest struct {
	Username string `json:"username"`
}

type CheckUsernameResponse struct {
	Available bool `json:"available"`
}

type CreateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateAccountResponse struct {
	Accepted  bool                      `json:"accepted"`
	AccountID *model.PersistentEntityId `json:"account_id,omitempty"`
	Reason    string                    `json:"reason,omitempty"`
}

type SendInputRequest struct {
	SessionID model.SessionId `json:"session_id"`
	Text      string          `json:"text"`
}

type SessionHeartbeat struct {
	SessionID model.SessionId `json:"session_id"`
}

type SessionDisconnected struct {
	SessionID model.SessionId `json:"session_id"`
}

type SessionReconnected struct {
	SessionID      model.SessionId `json:"session_id"`
	QueuedCommands []string        `json:"queued_commands"`
}

// --- WorldToSession payloads ---

type SendOutputRequest struct {
	SessionID model.SessionId    `json:"session_id"`
	Outputs   []model.GameOutput `json:"outputs"`
}

type SendPromptRequest struct {
	SessionID model.SessionId `json:"session_id"`
	Text      string          `json:"text"`
}

type EntityStateChangedRequest struct {
	SessionID model.SessionId          `json:"session_id"`
	EntityID  model.PersistentEntityId `json:"entity_id"`
	Field     string                   `json:"field"`
	Value     model.Value              `json:"value"`
}

// UnmarshalJSON routes Value through model.ParseValue, since an interface
// field cannot be filled by encoding/json directly.
func (r *EntityStateChangedRequest) UnmarshalJSON(raw []byte) error {
	type plain struct {
		SessionID model.SessionId          `json:"session_id"`
		EntityID  model.PersistentEntityId `json:"entity_id"`
		Field     string                   `json:"field"`
		Value     json.RawMessage          `json:"value"`
	}
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	r.SessionID, r.EntityID, r.Field = p.SessionID, p.EntityID, p.Field
	if len(p.Value) > 0 && string(p.Value) != "null" {
		v, err := model.ParseValue(p.Value)
		if err != nil {
			return err
		}
		r.Value = v
	}
	return nil
}

// SessionStateChangedRequest drives the Gateway's own session FSM
// (internal/session) forward as the World's dispatch state advances past
// authentication, since nothing else tells GatewaySession.State to leave
// Authenticating (§4.3).
type SessionStateChangedRequest struct {
	SessionID model.SessionId `json:"session_id"`
	State     string          `json:"state"`
}

type DisconnectSessionRequest struct {
	SessionID model.SessionId `json:"session_id"`
	Reason    string          `json:"reason"`
}

// --- GatewayManagement payloads ---

type AuthenticateGatewayRequest struct {
	AuthKey string `json:"auth_key"`
}

type AuthenticateGatewayResponse struct {
	Accepted bool `json:"accepted"`
}

type GatewayHeartbeat struct{}

type GatewayPropertiesRequest struct {
	Keys []string `json:"keys"`
}

type GatewayPropertiesResponse struct {
	Values map[string]string `json:"values"`
}

type ServerStatisticsResponse struct {
	ActiveSessions int `json:"active_sessions"`
}
