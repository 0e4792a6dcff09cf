package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType names a websocket frame.
type MessageType string

const (
	MsgVerify         MessageType = "verify"
	MsgVerifyEnvelope MessageType = "verify_envelope"
	MsgResult         MessageType = "result"
	MsgError          MessageType = "error"
)

// WSMessage is a websocket frame. Requests carry a VerifyRequest or
// EnvelopeRequest in Data; replies echo the request ID.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorResponse  `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// HandleWebsocket serves verification requests over a websocket. Frames are
// handled in order, one reply per request.
func (s *Server) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithConnection(r.RemoteAddr).Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.metrics.WebsocketConnections.Inc()
	defer s.metrics.WebsocketConnections.Dec()

	log := s.logger.WithConnection(r.RemoteAddr)
	log.Debug("Websocket connection opened")
	conn.SetReadLimit(s.cfg.MaxBodyBytes)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Websocket read failed", zap.Error(err))
			} else {
				log.Debug("Websocket connection closed")
			}
			return
		}

		reply := s.handleFrame(raw)
		reply.Timestamp = time.Now()
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn("Websocket write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) handleFrame(raw []byte) WSMessage {
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		_, body := errorBody("", &requestError{err: err})
		return WSMessage{Type: MsgError, Error: &body}
	}

	requestID := msg.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var kind string
	switch msg.Type {
	case MsgVerify:
		kind = schemaVerify
	case MsgVerifyEnvelope:
		kind = schemaEnvelope
	default:
		return WSMessage{Type: MsgError, ID: requestID, Error: &ErrorResponse{
			Error:       codeInvalidRequest,
			Description: "unknown message type " + string(msg.Type),
			RequestID:   requestID,
		}}
	}

	resp, err := s.verify(requestID, "websocket", kind, msg.Data)
	if err != nil {
		_, body := errorBody(requestID, err)
		return WSMessage{Type: MsgError, ID: requestID, Error: &body}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		_, body := errorBody(requestID, err)
		return WSMessage{Type: MsgError, ID: requestID, Error: &body}
	}
	return WSMessage{Type: MsgResult, ID: requestID, Data: data}
}
