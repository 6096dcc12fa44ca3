package api

import (
	"context"
	"encoding/json"
	"time"
)

// commandTimeout bounds controller work triggered from the command topic.
// Covers a full discovery pass plus a multi-label emit sequence.
const commandTimeout = 60 * time.Second

// emitCommand is the payload accepted on {prefix}/command/emit. Addr may be
// empty to target the first discovered blaster, mirroring POST /emit.
type emitCommand struct {
	Addr   string   `json:"addr"`
	Labels []string `json:"labels"`
}

// bindCommands subscribes the server to its MQTT command topics. The client
// tracks the subscription and restores it after a broker reconnect.
func (s *Server) bindCommands() error {
	if s.mqtt == nil {
		return nil
	}
	return s.mqtt.Subscribe(s.topics().CommandEmit(), 1, s.handleEmitCommand)
}

// handleEmitCommand dispatches one emit command received over MQTT. The
// outcome is announced on the signal topics the same way an HTTP emit is.
func (s *Server) handleEmitCommand(topic string, payload []byte) error {
	var cmd emitCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		s.logger.Warn("invalid emit command", "topic", topic, "error", err)
		return err
	}
	if len(cmd.Labels) == 0 {
		s.logger.Warn("emit command without labels", "topic", topic)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	sent, err := s.controller.Emit(ctx, cmd.Addr, cmd.Labels)
	if err != nil {
		s.logger.Error("emit command failed", "labels", cmd.Labels, "error", err)
		return err
	}
	if !sent {
		s.logger.Warn("emit command not delivered", "labels", cmd.Labels)
		return nil
	}

	for _, label := range cmd.Labels {
		s.publishEvent(ChannelSignalEmitted, s.topics().SignalEmitted(label), map[string]any{
			"label": label,
		})
		s.recordEvent("emitted", label, cmd.Addr)
	}
	return nil
}
