package rpcworld

import (
	"context"
	"fmt"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/rpc"
)

// bindSession remembers which gatewayLink a session id arrived on, so a
// later out-of-band push (entity_state_changed from another session's
// action, a broadcast) can reach the right Gateway connection even though
// it didn't originate the current request.
func (s *Server) bindSession(id model.SessionId, link *gatewayLink) {
	s.mu.Lock()
	s.sessions[id] = true
	s.mu.Unlock()
	s.linksMu.Lock()
	s.links[id] = link
	s.linksMu.Unlock()
}

// PushToSession sends a WorldToSession.send_output to whichever Gateway
// connection last handled sessionID, if any is currently bound.
func (s *Server) PushToSession(sessionID model.SessionId, outputs []model.GameOutput) error {
	s.linksMu.RLock()
	link, ok := s.links[sessionID]
	s.linksMu.RUnlock()
	if !ok {
		return fmt.Errorf("no gateway bound for session %s", sessionID)
	}
	return link.PushOutput(sessionID, outputs)
}

func (s *Server) handle(ctx context.Context, link *gatewayLink, env rpc.Envelope) {
	switch env.Type {
	case rpc.TypeSendInput:
		s.handleSendInput(ctx, link, env)
	case rpc.TypeSessionHeartbeat:
		var req rpc.SessionHeartbeat
		if rpc.Decode(env, &req) == nil {
			s.bindSession(req.SessionID, link)
		}
	case rpc.TypeSessionDisconnected:
		var req rpc.SessionDisconnected
		if rpc.Decode(env, &req) == nil {
			s.dispatcher.HandleDisconnect(ctx, req.SessionID)
		}
	case rpc.TypeSessionReconnected:
		s.handleSessionReconnected(ctx, link, env)
	case rpc.TypeGatewayProperties:
		s.handleGatewayProperties(link, env)
	case rpc.TypeServerStatistics:
		s.handleServerStatistics(link)
	case rpc.TypeAuthenticateSession:
		s.handleAuthenticateSession(ctx, link, env)
	case rpc.TypeCheckUsername:
		s.handleCheckUsername(ctx, link, env)
	case rpc.TypeCreateAccount:
		s.handleCreateAccount(ctx, link, env)
	default:
		s.log.Warn("unknown rpc envelope type", "type", env.Type)
	}
}

func (s *Server) handleSendInput(ctx context.Context, link *gatewayLink, env rpc.Envelope) {
	var req rpc.SendInputRequest
	if err := rpc.Decode(env, &req); err != nil {
		s.log.Warn("send_input decode failed", "error", err)
		return
	}
	s.bindSession(req.SessionID, link)

	outputs, gatewayState, err := s.dispatcher.HandleInput(ctx, req.SessionID, req.Text)
	if err != nil {
		s.log.Warn("dispatch failed", "session_id", req.SessionID, "error", err)
		return
	}
	if gatewayState != "" {
		if err := link.PushSessionStateChanged(req.SessionID, gatewayState); err != nil {
			s.log.Warn("push session state failed", "session_id", req.SessionID, "error", err)
		}
	}
	if len(outputs) > 0 {
		if err := link.PushOutput(req.SessionID, outputs); err != nil {
			s.log.Warn("push output failed, deferring", "session_id", req.SessionID, "error", err)
			s.dispatcher.DeferOutputs(ctx, req.SessionID, outputs)
			return
		}
	}
	s.pushEntityEventsAndPrompt(ctx, link, req.SessionID)
}

// pushEntityEventsAndPrompt flushes the out-of-band entity_state_changed
// updates a dispatch produced, then the session's prompt, after the in-band
// outputs have gone out.
func (s *Server) pushEntityEventsAndPrompt(ctx context.Context, link *gatewayLink, sessionID model.SessionId) {
	for _, ev := range s.dispatcher.DrainEntityEvents(ctx, sessionID) {
		if err := link.PushEntityStateChanged(sessionID, ev); err != nil {
			s.log.Warn("push entity state failed", "session_id", sessionID, "field", ev.Field, "error", err)
			return
		}
	}
	if prompt := s.dispatcher.Prompt(ctx, sessionID); prompt != "" {
		if err := link.PushPrompt(sessionID, prompt); err != nil {
			s.log.Warn("push prompt failed", "session_id", sessionID, "error", err)
		}
	}
}

func (s *Server) handleSessionReconnected(ctx context.Context, link *gatewayLink, env rpc.Envelope) {
	var req rpc.SessionReconnected
	if err := rpc.Decode(env, &req); err != nil {
		return
	}
	s.bindSession(req.SessionID, link)
	outputs, err := s.dispatcher.HandleReconnect(ctx, req.SessionID, req.QueuedCommands)
	if err != nil {
		s.log.Warn("reconnect replay failed", "session_id", req.SessionID, "error", err)
		return
	}
	if len(outputs) > 0 {
		link.PushOutput(req.SessionID, outputs)
	}
	s.pushEntityEventsAndPrompt(ctx, link, req.SessionID)
}

func (s *Server) handleGatewayProperties(link *gatewayLink, env rpc.Envelope) {
	var req rpc.GatewayPropertiesRequest
	if err := rpc.Decode(env, &req); err != nil {
		return
	}
	values := s.properties.GetMany(req.Keys)
	resp, err := rpc.Encode(rpc.TypeGatewayProperties, rpc.GatewayPropertiesResponse{Values: values})
	if err != nil {
		return
	}
	link.send(resp)
}

func (s *Server) handleAuthenticateSession(ctx context.Context, link *gatewayLink, env rpc.Envelope) {
	var req rpc.AuthenticateSessionRequest
	if err := rpc.Decode(env, &req); err != nil {
		return
	}
	s.bindSession(req.SessionID, link)
	accepted, accountID, avatars, reason := s.dispatcher.AuthenticateSession(ctx, req.SessionID, req.Username, req.Password)
	resp, err := rpc.Encode(rpc.TypeAuthenticateSession, rpc.AuthenticateSessionResponse{
		Accepted: accepted, AccountID: accountID, Avatars: avatars, Reason: reason,
	})
	if err != nil {
		return
	}
	link.send(resp)
	if accepted {
		if err := link.PushSessionStateChanged(req.SessionID, "character_selection"); err != nil {
			s.log.Warn("push session state failed", "session_id", req.SessionID, "error", err)
		}
	}
}

func (s *Server) handleCheckUsername(ctx context.Context, link *gatewayLink, env rpc.Envelope) {
	var req rpc.CheckUsernameRequest
	if err := rpc.Decode(env, &req); err != nil {
		return
	}
	available := s.dispatcher.CheckUsername(ctx, req.Username)
	resp, err := rpc.Encode(rpc.TypeCheckUsername, rpc.CheckUsernameResponse{Available: available})
	if err != nil {
		return
	}
	link.send(resp)
}

func (s *Server) handleCreateAccount(ctx context.Context, link *gatewayLink, env rpc.Envelope) {
	var req rpc.CreateAccountRequest
	if err := rpc.Decode(env, &req); err != nil {
		return
	}
	accepted, accountID, reason := s.dispatcher.CreateAccount(ctx, req.Username, req.Password)
	resp, err := rpc.Encode(rpc.TypeCreateAccount, rpc.CreateAccountResponse{Accepted: accepted, AccountID: accountID, Reason: reason})
	if err != nil {
		return
	}
	link.send(resp)
}

func (s *Server) handleServerStatistics(link *gatewayLink) {
	s.mu.RLock()
	count := len(s.sessions)
	s.mu.RUnlock()
	resp, err := rpc.Encode(rpc.TypeServerStatistics, rpc.ServerStatisticsResponse{ActiveSessions: count})
	if err != nil {
		return
	}
	link.send(resp)
}
