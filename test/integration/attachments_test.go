package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/rhuss/missive/pkg/api"
	transporthttp "github.com/rhuss/missive/pkg/transport/http"
)

func TestAttachmentRoundTrip(t *testing.T) {
	owner := newUser(t)
	p := createProject(t, owner, "images")
	m := createMessage(t, owner, p.ID, api.CreateMessageRequest{
		Content:         json.RawMessage(`{}`),
		InitialPassword: "secret",
	})

	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i * 7)
	}

	requireError(t, uploadAttachment(t, m.ID, "", "image/png", data), http.StatusUnauthorized, api.ErrorTypeUnauthenticated)

	resp := uploadAttachment(t, m.ID, "secret", "image/png", data)
	requireStatus(t, resp, http.StatusCreated)
	var up api.UploadResponse
	decodeJSON(t, resp, &up)
	if up.FileName != m.ID {
		t.Errorf("fileName = %q, want %q", up.FileName, m.ID)
	}

	requireError(t, send(t, request{method: http.MethodGet, path: "/message/" + m.ID + "/image"}),
		http.StatusUnauthorized, api.ErrorTypeUnauthenticated)

	resp = send(t, request{
		method:  http.MethodGet,
		path:    "/message/" + m.ID + "/image",
		headers: map[string]string{transporthttp.PasswordHeader: "secret"},
	})
	requireStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()

	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading attachment: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("downloaded %d bytes, want the %d uploaded bytes", len(got), len(data))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q, want application/octet-stream", ct)
	}
}

func TestAttachmentOverwrite(t *testing.T) {
	owner := newUser(t)
	p := createProject(t, owner, "overwrite")
	m := createMessage(t, owner, p.ID, api.CreateMessageRequest{Content: json.RawMessage(`{}`)})

	for _, payload := range []string{"first version, longer", "second"} {
		resp := uploadAttachment(t, m.ID, "", "image/jpeg", []byte(payload))
		requireStatus(t, resp, http.StatusCreated)
		resp.Body.Close()
	}

	resp := getURL(t, testEnv.BaseURL()+"/message/"+m.ID+"/image")
	requireStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); body != "second" {
		t.Errorf("attachment = %q, want %q", body, "second")
	}
}

func TestAttachmentRejected(t *testing.T) {
	owner := newUser(t)
	p := createProject(t, owner, "rejected")
	m := createMessage(t, owner, p.ID, api.CreateMessageRequest{Content: json.RawMessage(`{}`)})

	requireError(t, uploadAttachment(t, m.ID, "", "application/pdf", []byte("%PDF")),
		http.StatusBadRequest, api.ErrorTypeInvalidRequest)

	requireError(t, uploadAttachment(t, m.ID, "", "image/png", make([]byte, 65<<10)),
		http.StatusRequestEntityTooLarge, api.ErrorTypeTooLarge)

	requireError(t, getURL(t, testEnv.BaseURL()+"/message/"+m.ID+"/image"),
		http.StatusNotFound, api.ErrorTypeNotFound)
}
