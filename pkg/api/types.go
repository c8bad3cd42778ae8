package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// Project is a named container of messages owned by a single identity.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a piece of content belonging to a project. When PasswordHash
// is set, Content and the attachment are only disclosed to callers that
// present the matching password.
type Message struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"projectId"`
	Content      json.RawMessage `json:"content"`
	PasswordHash *string         `json:"-"`
	Hint         *string         `json:"hint"`
	From         *string         `json:"from"`
	To           *string         `json:"to"`
	Version      int64           `json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Protected reports whether the message is gated by a password.
func (m *Message) Protected() bool {
	return m.PasswordHash != nil && *m.PasswordHash != ""
}

// Summary returns the public metadata of the message.
func (m *Message) Summary() MessageSummary {
	return MessageSummary{
		ID:        m.ID,
		Hint:      m.Hint,
		From:      m.From,
		To:        m.To,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// AdminSummary returns the metadata of the message including its project.
func (m *Message) AdminSummary() MessageSummary {
	s := m.Summary()
	s.ProjectID = m.ProjectID
	return s
}

// MessageSummary is message metadata without content.
type MessageSummary struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId,omitempty"`
	Hint      *string   `json:"hint"`
	From      *string   `json:"from"`
	To        *string   `json:"to"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateProjectRequest is the body of POST /project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// UpdateProjectRequest is the body of PATCH /project/update/{projectId}.
type UpdateProjectRequest struct {
	Name string `json:"name"`
}

// CreateMessageRequest is the body of POST /admin/message/{projectId}.
// An empty InitialPassword leaves the message unprotected.
type CreateMessageRequest struct {
	Content         json.RawMessage `json:"content"`
	MessageID       string          `json:"messageId,omitempty"`
	InitialPassword string          `json:"initialPassword,omitempty"`
	Hint            *string         `json:"hint,omitempty"`
	From            *string         `json:"from,omitempty"`
	To              *string         `json:"to,omitempty"`
}

// UpdateMessageRequest is the body of the admin message update. Omitted
// fields keep their stored value. An explicit "content": null clears the
// content, which is why Content stays a raw message: the decoder hands the
// literal null to it instead of leaving it empty.
type UpdateMessageRequest struct {
	Content  json.RawMessage `json:"content,omitempty"`
	Password *string         `json:"password,omitempty"`
	Hint     *string         `json:"hint,omitempty"`
	From     *string         `json:"from,omitempty"`
	To       *string         `json:"to,omitempty"`
}

// ContentSupplied reports whether the request carried a content field.
func (r *UpdateMessageRequest) ContentSupplied() bool {
	return len(r.Content) > 0
}

// ReadMessageRequest is the body of POST /message/{messageId}.
type ReadMessageRequest struct {
	Password *string `json:"password,omitempty"`
}

// UpdatePasswordRequest is the body of PATCH /message/{messageId}/password.
type UpdatePasswordRequest struct {
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
	NewHint         *string `json:"newHint,omitempty"`
}

// StatusResponse carries a human readable confirmation.
type StatusResponse struct {
	Message string `json:"message"`
}

// UploadResponse is returned after an attachment upload.
type UploadResponse struct {
	Message  string `json:"message"`
	FileName string `json:"fileName"`
}

// IsNullContent reports whether raw is absent or the JSON literal null.
func IsNullContent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
