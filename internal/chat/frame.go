package chat

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
)

// Inbound frame types.
const (
	FrameMessage   = "message"
	FrameHeartbeat = "heartbeat"
	FrameStatus    = "status"
)

// ArchivePrefix marks message content that points at an archive item.
const ArchivePrefix = "archive:"

var validate = validator.New()

// Frame is the envelope of every inbound websocket frame. Room and sender always
// come from the connection; any roomId or senderId in the payload is ignored.
type Frame struct {
	Type    string                `json:"type" validate:"omitempty,oneof=message heartbeat status"`
	Ref     string                `json:"ref" validate:"max=64"`
	Content string                `json:"content"`
	Kind    models.MessageKind    `json:"kind"`
	Status  models.PresenceStatus `json:"status"`
}

type messageFields struct {
	Content string             `validate:"required,max=4000"`
	Kind    models.MessageKind `validate:"required,oneof=TEXT IMAGE ARCHIVE_REF"`
}

// DecodeFrame parses an inbound frame. An empty type means message.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, apperrors.Wrap(err, apperrors.ErrMalformedMessage)
	}
	if err := validate.Struct(f); err != nil {
		return Frame{}, apperrors.Wrap(err, apperrors.ErrMalformedMessage)
	}
	if f.Type == "" {
		f.Type = FrameMessage
	}
	return f, nil
}

// messageFromFrame checks the message fields of f. A missing kind means TEXT.
func messageFromFrame(f Frame) (models.MessageKind, string, error) {
	fields := messageFields{Content: f.Content, Kind: f.Kind}
	if fields.Kind == "" {
		fields.Kind = models.KindText
	}
	if strings.TrimSpace(fields.Content) == "" {
		return "", "", apperrors.WithMessage(apperrors.ErrMalformedMessage, "content is required")
	}
	if err := validate.Struct(fields); err != nil {
		return "", "", apperrors.Wrap(err, apperrors.ErrMalformedMessage)
	}
	return fields.Kind, fields.Content, nil
}

// ExtractArchiveID parses "archive:<id>" content.
func ExtractArchiveID(content string) (int64, error) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, ArchivePrefix) {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidArchiveReference, "content must look like archive:<id>")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(content, ArchivePrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidArchiveReference, "archive id must be a positive integer")
	}
	return id, nil
}
