package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/auth/ownership"
	"github.com/rhuss/missive/pkg/observability"
	"github.com/rhuss/missive/pkg/transport"
)

const (
	messageIDParam = "messageId"

	// PasswordHeader carries the message password on attachment downloads.
	PasswordHeader = "X-Message-Password"

	// multipartOverhead is the allowance for boundaries and form fields on
	// top of the attachment itself.
	multipartOverhead = 64 << 10

	// multipartMemory is how much of a multipart body is held in memory
	// before the remainder is spooled to temporary files.
	multipartMemory = 1 << 20
)

// handleListMessages handles GET /admin/message/list/{projectId}.
func (a *Adapter) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.messages.ListByProject(r.Context(), r.PathValue(ownership.PathParam))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	out := make([]api.MessageSummary, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.AdminSummary())
	}
	transport.WriteJSON(w, http.StatusOK, out)
}

// handleCreateMessage handles POST /admin/message/{projectId}.
func (a *Adapter) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req api.CreateMessageRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	m, err := a.messages.Create(r.Context(), r.PathValue(ownership.PathParam), &req)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, m.AdminSummary())
}

// handleUpdateMessage handles PATCH /admin/message/{projectId}/{messageId}.
func (a *Adapter) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateMessageRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	req.Password = passwordPtr(req.Password)

	m, err := a.messages.Update(r.Context(), r.PathValue(ownership.PathParam), r.PathValue(messageIDParam), &req)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, m.AdminSummary())
}

// handleDeleteMessage handles DELETE /admin/message/{projectId}/{messageId}.
func (a *Adapter) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := a.messages.Delete(r.Context(), r.PathValue(ownership.PathParam), r.PathValue(messageIDParam)); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.StatusResponse{Message: "Message deleted successfully"})
}

// handleDeleteMessages handles DELETE /admin/message/{projectId}.
func (a *Adapter) handleDeleteMessages(w http.ResponseWriter, r *http.Request) {
	if err := a.messages.DeleteByProject(r.Context(), r.PathValue(ownership.PathParam)); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.StatusResponse{Message: "Messages deleted successfully"})
}

// handleMessageSummary handles GET /message/{messageId}. The summary is
// public: it never includes the content.
func (a *Adapter) handleMessageSummary(w http.ResponseWriter, r *http.Request) {
	m, err := a.messages.Summary(r.Context(), r.PathValue(messageIDParam))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, m.Summary())
}

// handleReadMessage handles POST /message/{messageId}.
func (a *Adapter) handleReadMessage(w http.ResponseWriter, r *http.Request) {
	var req api.ReadMessageRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	m, err := a.messages.Read(r.Context(), r.PathValue(messageIDParam), passwordPtr(req.Password))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, m)
}

// handleUpdatePassword handles PATCH /message/{messageId}/password.
func (a *Adapter) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req api.UpdatePasswordRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	m, err := a.messages.UpdatePassword(r.Context(), r.PathValue(messageIDParam), &req)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, m.Summary())
}

// handleDownload handles GET /message/{messageId}/image.
func (a *Adapter) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue(messageIDParam)

	pw := r.Header.Get(PasswordHeader)
	if pw == "" {
		pw = r.URL.Query().Get("password")
	}

	rc, err := a.messages.OpenAttachment(r.Context(), id, password(pw))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	defer rc.Close()
	id, _ = api.CanonicalID(id)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, rc)
	observability.AttachmentBytesTotal.WithLabelValues("download").Add(float64(n))
	if err != nil {
		slog.Warn("attachment download interrupted",
			"message_id", id,
			"bytes", n,
			"error", err,
		)
	}
}

// handleUpload handles POST /message/{messageId}/image with a multipart
// body holding the file and the message password.
func (a *Adapter) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue(messageIDParam)
	tooLarge := api.NewTooLargeError("file", fmt.Sprintf("file too large (max %d bytes)", a.config.MaxFileSize))

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteAPIError(w, tooLarge)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		transport.WriteAPIError(w, api.NewInvalidRequestError("file", "file is required"))
		return
	}
	defer file.Close()

	if header.Size > a.config.MaxFileSize {
		transport.WriteAPIError(w, tooLarge)
		return
	}
	if !a.allowedContentType(header.Header.Get("Content-Type")) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("file", "file type is not allowed"))
		return
	}

	if _, err := a.messages.UploadAttachment(r.Context(), id, password(r.FormValue("password")), file); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	id, _ = api.CanonicalID(id)
	transport.WriteJSON(w, http.StatusCreated, api.UploadResponse{
		Message:  "Image uploaded successfully",
		FileName: id,
	})
}
