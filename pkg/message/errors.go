package message

import (
	"errors"
	"fmt"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/storage"
)

// Client-facing messages.
const (
	MsgPasswordRequired       = "This message is password protected. Please provide a password."
	MsgInvalidPassword        = "Invalid password. Please try again."
	MsgNoPassword             = "This message does not have a password set."
	MsgInvalidCurrentPassword = "Invalid current password."
	MsgTooManyAttempts        = "Too many password attempts. Please try again later."
	MsgNotFound               = "Message not found"
	MsgProjectNotFound        = "Project not found"
	MsgAttachmentNotFound     = "Attachment not found"
	MsgAlreadyExists          = "A message with this id already exists"
	MsgConcurrentUpdate       = "The message was modified concurrently. Please retry."
)

// fromStore translates storage sentinels into API errors. notFound is the
// message used when the record does not exist.
func fromStore(err error, op, notFound, conflict string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError(notFound)
	case errors.Is(err, storage.ErrConflict):
		return api.NewConflictError(conflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
