package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/palmgrid/orvibo-core/internal/bridges/orvibo"
	"github.com/palmgrid/orvibo-core/internal/infrastructure/mqtt"
	"github.com/palmgrid/orvibo-core/internal/signal"
)

// Event channels broadcast over the WebSocket hub.
const (
	ChannelDeviceDiscovered = "device.discovered"
	ChannelSignalCaptured   = "signal.captured"
	ChannelSignalEmitted    = "signal.emitted"
	ChannelLearnTimeout     = "learn.timeout"
)

// handleListDevices runs a discovery pass and returns responding devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.controller.Discover(r.Context())
	if err != nil {
		s.logger.Error("discovery failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "discovery failed")
		return
	}

	for _, info := range devices {
		s.publishEvent(ChannelDeviceDiscovered, s.topics().DeviceState(info.Addr), info)
	}
	s.publishMQTT(s.topics().Discovery(), map[string]any{
		"count": len(devices),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// learnRequest is the body for POST /learn.
type learnRequest struct {
	Label string `json:"label"`
}

// handleLearn arms capture mode on a blaster and waits for a button press.
//
// The response reports captured=false when the session timed out without
// a press; this is a normal outcome, not an error.
func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Label != "" {
		if err := signal.ValidateLabel(req.Label); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	addr := chi.URLParam(r, "addr")
	data, err := s.controller.Learn(r.Context(), addr, req.Label)
	if err != nil {
		s.writeDeviceError(w, "learn", err)
		return
	}

	if data == nil {
		s.publishEvent(ChannelLearnTimeout, s.topics().Event("learn_timeout"), map[string]any{
			"addr": addr,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"captured": false,
		})
		return
	}

	s.publishEvent(ChannelSignalCaptured, s.topics().SignalCaptured(req.Label), map[string]any{
		"label": req.Label,
		"size":  len(data),
	})
	s.recordEvent("captured", req.Label, addr)

	writeJSON(w, http.StatusOK, map[string]any{
		"captured": true,
		"label":    req.Label,
		"size":     len(data),
	})
}

// emitRequest is the body for POST /emit.
type emitRequest struct {
	Labels []string `json:"labels"`
}

// handleEmit plays back stored signals through a blaster, in order.
func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Labels) == 0 {
		writeBadRequest(w, "labels are required")
		return
	}

	addr := chi.URLParam(r, "addr")
	sent, err := s.controller.Emit(r.Context(), addr, req.Labels)
	if err != nil {
		if errors.Is(err, signal.ErrSignalNotFound) {
			writeNotFound(w, err.Error())
			return
		}
		s.writeDeviceError(w, "emit", err)
		return
	}

	if sent {
		for _, label := range req.Labels {
			s.publishEvent(ChannelSignalEmitted, s.topics().SignalEmitted(label), map[string]any{
				"label": label,
			})
			s.recordEvent("emitted", label, addr)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sent":   sent,
		"labels": req.Labels,
	})
}

// handleListSignals returns the stored signal catalogue.
func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	records, err := s.signals.List(r.Context())
	if err != nil {
		s.logger.Error("listing signals failed", "error", err)
		writeInternalError(w, "listing signals failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signals": records,
		"count":   len(records),
	})
}

// handleDeleteSignal removes one stored signal.
func (s *Server) handleDeleteSignal(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if err := s.signals.Delete(r.Context(), label); err != nil {
		if errors.Is(err, signal.ErrSignalNotFound) {
			writeNotFound(w, err.Error())
			return
		}
		s.logger.Error("deleting signal failed", "label", label, "error", err)
		writeInternalError(w, "deleting signal failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": label,
	})
}

// writeDeviceError maps bridge errors onto HTTP responses.
func (s *Server) writeDeviceError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	if errors.Is(err, orvibo.ErrDeviceNotFound) {
		writeNotFound(w, "device not found on segment")
		return
	}
	writeError(w, http.StatusBadGateway, ErrCodeUnavailable, op+" failed")
}

// publishEvent fans an event out to WebSocket subscribers and, when a broker
// is connected, to MQTT.
func (s *Server) publishEvent(channel, topic string, payload any) {
	if s.hub != nil {
		s.hub.Broadcast(channel, payload)
	}
	s.publishMQTT(topic, payload)
}

// publishMQTT publishes payload as JSON on topic. No-op without a broker.
func (s *Server) publishMQTT(topic string, payload any) {
	if s.mqtt == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.mqtt.Publish(topic, data, 0, false); err != nil {
		s.logger.Debug("event publish failed", "topic", topic, "error", err)
	}
}

// recordEvent hands a signal event to the configured recorder, if any.
func (s *Server) recordEvent(event, label, addr string) {
	if s.events == nil {
		return
	}
	s.events.WriteSignalEvent(event, label, addr)
}

// topics returns the MQTT topic builder, usable even without a broker.
func (s *Server) topics() mqtt.Topics {
	if s.mqtt != nil {
		return s.mqtt.TopicFor()
	}
	return mqtt.Topics{}
}
