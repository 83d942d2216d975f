package rpcworld

import (
	"log/slog"
	"net"
	"sync"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/rpc"
)

// gatewayLink is one authenticated Gateway's connection, wrapping the
// framed reader/writer with a send mutex since WorldToSession callbacks and
// request replies can both be in flight concurrently.
type gatewayLink struct {
	conn   net.Conn
	reader *rpc.FrameReader
	writer *rpc.FrameWriter
	log    *slog.Logger

	sendMu sync.Mutex
}

func newGatewayLink(conn net.Conn, log *slog.Logger) *gatewayLink {
	return &gatewayLink{
		conn:   conn,
		reader: rpc.NewFrameReader(conn),
		writer: rpc.NewFrameWriter(conn),
		log:    log,
	}
}

// send serializes concurrent writers (reply path vs. WorldToSession push).
func (l *gatewayLink) send(env rpc.Envelope) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return l.writer.WriteEnvelope(env)
}

// PushOutput sends a WorldToSession.send_output callback for sessionID.
func (l *gatewayLink) PushOutput(sessionID model.SessionId, outputs []model.GameOutput) error {
	env, err := rpc.Encode(rpc.TypeSendOutput, rpc.SendOutputRequest{SessionID: sessionID, Outputs: outputs})
	if err != nil {
		return err
	}
	return l.send(env)
}

// PushSessionStateChanged sends a WorldToSession.session_state_changed
// callback, advancing the Gateway's own session FSM (§4.3).
func (l *gatewayLink) PushSessionStateChanged(sessionID model.SessionId, state string) error {
	env, err := rpc.Encode(rpc.TypeSessionStateChanged, rpc.SessionStateChangedRequest{SessionID: sessionID, State: state})
	if err != nil {
		return err
	}
	return l.send(env)
}

// PushPrompt sends a WorldToSession.send_prompt callback.
func (l *gatewayLink) PushPrompt(sessionID model.SessionId, text string) error {
	env, err := rpc.Encode(rpc.TypeSendPrompt, rpc.SendPromptRequest{SessionID: sessionID, Text: text})
	if err != nil {
		return err
	}
	return l.send(env)
}

// PushEntityStateChanged sends a WorldToSession.entity_state_changed
// callback carrying one out-of-band structured update.
func (l *gatewayLink) PushEntityStateChanged(sessionID model.SessionId, ev model.EntityEvent) error {
	env, err := rpc.Encode(rpc.TypeEntityStateChanged, rpc.EntityStateChangedRequest{
		SessionID: sessionID, EntityID: ev.EntityID, Field: ev.Field, Value: ev.Value,
	})
	if err != nil {
		return err
	}
	return l.send(env)
}

// PushDisconnect sends a WorldToSession.disconnect_session callback.
func (l *gatewayLink) PushDisconnect(sessionID model.SessionId, reason string) error {
	env, err := rpc.Encode(rpc.TypeDisconnectSession, rpc.DisconnectSessionRequest{SessionID: sessionID, Reason: reason})
	if err != nil {
		return err
	}
	return l.send(env)
}
