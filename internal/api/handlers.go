package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/telnyx"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/util"
)

// telnyxWebhookHandler receives inbound message events from Telnyx
// (POST /webhooks/telnyx).
//
// Unrecognized envelopes and non-message events are acknowledged with 200 so
// the provider does not retry them; only a message.received event missing its
// required fields is a 400.
func (s *Server) telnyxWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	reqID := util.GenerateRequestID()
	slog.Debug("Server.telnyxWebhookHandler: processing webhook", "method", r.Method, "request_id", reqID)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.telnyxWebhookHandler: method not allowed", "method", r.Method, "request_id", reqID)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload telnyx.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.telnyxWebhookHandler: failed to decode JSON", "error", err, "request_id", reqID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	msg, err := telnyx.ExtractInbound(payload)
	if err != nil {
		var missing *telnyx.MissingFieldsError
		switch {
		case errors.Is(err, models.ErrInvalidPayload):
			// Recognized-but-ignorable: delivery receipts and the like.
			slog.Info("Server.telnyxWebhookHandler: ignoring event", "event_type", payload.Data.EventType, "request_id", reqID)
			writeJSONResponse(w, http.StatusOK, models.Ignored("event ignored"))
		case errors.As(err, &missing):
			slog.Warn("Server.telnyxWebhookHandler: missing required fields", "fields", missing.Fields, "request_id", reqID)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(missing.Error()))
		default:
			slog.Error("Server.telnyxWebhookHandler: extraction failed", "error", err, "request_id", reqID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error(err.Error()))
		}
		return
	}

	s.handleInbound(w, r, msg, reqID)
}

// twilioWebhookHandler receives inbound messages in Twilio's form-encoded
// webhook format (POST /webhooks/twilio).
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	reqID := util.GenerateRequestID()
	slog.Debug("Server.twilioWebhookHandler: processing webhook", "method", r.Method, "request_id", reqID)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.twilioWebhookHandler: method not allowed", "method", r.Method, "request_id", reqID)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.twilioWebhookHandler: failed to parse form", "error", err, "request_id", reqID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form payload"))
		return
	}

	msg := models.InboundMessage{
		From: r.PostFormValue("From"),
		To:   r.PostFormValue("To"),
		Text: r.PostFormValue("Body"),
	}
	var missing []string
	if msg.From == "" {
		missing = append(missing, "From")
	}
	if msg.To == "" {
		missing = append(missing, "To")
	}
	if msg.Text == "" {
		missing = append(missing, "Body")
	}
	if len(missing) > 0 {
		slog.Warn("Server.twilioWebhookHandler: missing required fields", "fields", missing, "request_id", reqID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(fmt.Sprintf("missing required fields: %v", missing)))
		return
	}

	s.handleInbound(w, r, msg, reqID)
}

// handleInbound runs the flow engine for a normalized message and writes the
// shared response envelope.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request, msg models.InboundMessage, reqID string) {
	res, err := s.engine.HandleInbound(r.Context(), msg)
	if err != nil {
		// The message itself was unusable (e.g. sender number with no
		// digits). Collaborator failures never reach this branch.
		slog.Error("Server.handleInbound: engine rejected message", "error", err, "request_id", reqID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if !res.Sent && res.Reply == "" {
		writeJSONResponse(w, http.StatusOK, models.Ignored("no reply sent"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message processed", res))
}

// followupsHandler triggers one follow-up pass over the contact list
// (POST /followups/run). The cron schedule calls the same runner; this
// endpoint exists for manual and external triggering.
func (s *Server) followupsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.followupsHandler: processing trigger", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.followupsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	summary, err := s.runner.Run(r.Context())
	if err != nil {
		slog.Error("Server.followupsHandler: run failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Follow-ups sent", summary))
}

// healthHandler reports liveness (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}
