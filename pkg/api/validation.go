package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MaxProjectNameLength bounds project names.
const MaxProjectNameLength = 200

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

func passwordTooLong(param string) *APIError {
	return NewInvalidRequestError(param, fmt.Sprintf("%s must be at most %d bytes", param, MaxPasswordBytes))
}

// ValidateProjectName checks a project name. It returns an *APIError
// describing the failure, or nil if the name is valid.
func ValidateProjectName(name string) *APIError {
	if strings.TrimSpace(name) == "" {
		return NewInvalidRequestError("name", "name is required")
	}
	if len(name) > MaxProjectNameLength {
		return NewInvalidRequestError("name", "name is too long")
	}
	return nil
}

// ValidateCreateMessage checks a CreateMessageRequest for validity.
func ValidateCreateMessage(req *CreateMessageRequest) *APIError {
	if len(req.Content) == 0 {
		return NewInvalidRequestError("content", "content is required")
	}
	if !isDocument(req.Content) {
		return NewInvalidRequestError("content", "content must be a JSON object")
	}
	if req.MessageID != "" && !ValidateID(req.MessageID) {
		return NewInvalidRequestError("messageId", "messageId must be a UUID")
	}
	if len(req.InitialPassword) > MaxPasswordBytes {
		return passwordTooLong("initialPassword")
	}
	return nil
}

// ValidateUpdateMessage checks an UpdateMessageRequest. Content may be
// omitted, null, or a document.
func ValidateUpdateMessage(req *UpdateMessageRequest) *APIError {
	if req.ContentSupplied() && !IsNullContent(req.Content) && !isDocument(req.Content) {
		return NewInvalidRequestError("content", "content must be a JSON object or null")
	}
	if req.Password != nil && len(*req.Password) > MaxPasswordBytes {
		return passwordTooLong("password")
	}
	return nil
}

// ValidateUpdatePassword checks an UpdatePasswordRequest.
func ValidateUpdatePassword(req *UpdatePasswordRequest) *APIError {
	if req.CurrentPassword == "" {
		return NewInvalidRequestError("currentPassword", "Current password is required")
	}
	if req.NewPassword == "" {
		return NewInvalidRequestError("newPassword", "New password is required")
	}
	if len(req.NewPassword) > MaxPasswordBytes {
		return passwordTooLong("newPassword")
	}
	return nil
}

func isDocument(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}
