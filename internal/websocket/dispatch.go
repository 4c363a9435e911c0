package websocket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/parley/internal/chat"
	"github.com/nfrund/parley/internal/domain"
	"github.com/nfrund/parley/internal/protocol"
)

// dispatch handles one inbound frame. Every failure is answered with an
// error frame to s alone; the session stays open.
func (h *Handler) dispatch(ctx context.Context, s *Session, raw []byte) {
	frame, err := protocol.Decode(raw)
	if err != nil {
		_ = s.Deliver(errorFrame("Malformed message"))
		return
	}

	switch frame.Event {
	case protocol.EventJoinRoom:
		h.handleJoin(s, frame)
	case protocol.EventLeaveRoom:
		h.handleLeave(s, frame)
	case protocol.EventSendMessage:
		h.handleSend(ctx, s, frame)
	case protocol.EventGetMessages:
		h.handleGetMessages(ctx, s, frame)
	default:
		_ = s.Deliver(errorFrame(fmt.Sprintf("Unknown event %q", frame.Event)))
	}
}

func (h *Handler) handleJoin(s *Session, frame protocol.Frame) {
	var ref protocol.RoomRef
	if err := h.decode(frame, &ref); err != nil {
		_ = s.Deliver(errorFrame(err.Error()))
		return
	}

	h.registry.Join(s, ref.RoomID)
	s.logger.Debug("Session joined room", "room_id", ref.RoomID)
	h.reply(s, func() ([]byte, error) { return protocol.RoomFrame(protocol.EventJoinedRoom, ref.RoomID) })
}

func (h *Handler) handleLeave(s *Session, frame protocol.Frame) {
	var ref protocol.RoomRef
	if err := h.decode(frame, &ref); err != nil {
		_ = s.Deliver(errorFrame(err.Error()))
		return
	}

	h.registry.Leave(s, ref.RoomID)
	s.logger.Debug("Session left room", "room_id", ref.RoomID)
	h.reply(s, func() ([]byte, error) { return protocol.RoomFrame(protocol.EventLeftRoom, ref.RoomID) })
}

func (h *Handler) handleSend(ctx context.Context, s *Session, frame protocol.Frame) {
	var in protocol.SendMessage
	if err := h.decode(frame, &in); err != nil {
		_ = s.Deliver(errorFrame(err.Error()))
		return
	}

	_, err := h.pipeline.Send(ctx, chat.SendCommand{
		RoomID:   in.RoomID,
		SenderID: s.user.ID,
		Body:     in.Text(),
	})
	if err != nil {
		_ = s.Deliver(errorFrame(sendFailure(err)))
	}
}

func (h *Handler) handleGetMessages(ctx context.Context, s *Session, frame protocol.Frame) {
	var in protocol.GetMessages
	if err := h.decode(frame, &in); err != nil {
		_ = s.Deliver(errorFrame(err.Error()))
		return
	}

	page, err := h.history.Fetch(ctx, in.RoomID, in.Limit, in.Skip)
	if err != nil {
		_ = s.Deliver(errorFrame(clientMessage(err, "Failed to load messages")))
		return
	}
	h.reply(s, func() ([]byte, error) { return protocol.HistoryFrame(page) })
}

// decode unmarshals and validates the payload of frame into v.
func (h *Handler) decode(frame protocol.Frame, v any) error {
	if err := protocol.DecodeData(frame, v); err != nil {
		return fmt.Errorf("Invalid %s payload", frame.Event)
	}
	if err := h.validate.Struct(v); err != nil {
		return errors.New(describeValidation(frame.Event, err))
	}
	return nil
}

func (h *Handler) reply(s *Session, encode func() ([]byte, error)) {
	b, err := encode()
	if err != nil {
		s.logger.Error("Failed to encode reply", "error", err)
		_ = s.Deliver(errorFrame("Internal server error"))
		return
	}
	_ = s.Deliver(b)
}

// clientMessage picks the text sent to the client for a pipeline or history
// failure. Validation reasons are shown; store details are not.
func clientMessage(err error, fallback string) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return fallback
}

// sendFailure tells the sender whether a failed message was kept.
func sendFailure(err error) string {
	var serr *chat.StageError
	if errors.As(err, &serr) && serr.Stored() {
		return "Message saved but could not be delivered"
	}
	return clientMessage(err, "Failed to send message")
}

func describeValidation(event string, err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Sprintf("Invalid %s payload", event)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s is %s", lowerFirst(fe.Field()), fe.Tag()))
	}
	return fmt.Sprintf("Invalid %s payload: %s", event, strings.Join(fields, ", "))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func errorFrame(message string) []byte {
	return protocol.ErrorFrame(message)
}
