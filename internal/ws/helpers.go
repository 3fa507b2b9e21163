package ws

import (
	"encoding/json"

	"github.com/google/uuid"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
)

func newConnID() string {
	return uuid.NewString()
}

func encodeEvent(ev models.Event) []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		// only reachable through a broken models.Event definition
		panic(err)
	}
	return payload
}

func errorEvent(err error, ref string) models.Event {
	appErr := apperrors.FromError(err)
	message := appErr.Message
	if appErr.Code == apperrors.ErrInternal.Code {
		message = apperrors.ErrInternal.Message
	}
	return models.Event{
		Type:  models.EventError,
		Error: &models.ErrorBody{Code: appErr.Code, Message: message},
		Ref:   ref,
	}
}

func ackEvent(ref string) models.Event {
	return models.Event{Type: models.EventAck, Ref: ref}
}
