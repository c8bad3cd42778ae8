package gormstore

import (
	"encoding/json"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/rhuss/missive/pkg/api"
)

func TestMessageModelMapping(t *testing.T) {
	hint := "h"
	now := time.Now().UTC()

	tests := []struct {
		name        string
		content     json.RawMessage
		wantNil     bool
		wantContent string
	}{
		{"document", json.RawMessage(`{"a":1}`), false, `{"a":1}`},
		{"absent", nil, true, ""},
		{"json null", json.RawMessage("null"), true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := messageToModel(&api.Message{
				ID: "m", ProjectID: "p", Content: tt.content, Hint: &hint, CreatedAt: now, UpdatedAt: now,
			})
			if (model.Content == nil) != tt.wantNil {
				t.Fatalf("model.Content nil = %v, want %v", model.Content == nil, tt.wantNil)
			}

			back := messageFromModel(model)
			if string(back.Content) != tt.wantContent {
				t.Errorf("Content = %q, want %q", back.Content, tt.wantContent)
			}
			if back.Hint == nil || *back.Hint != "h" {
				t.Errorf("Hint = %v, want h", back.Hint)
			}
		})
	}
}

func TestMessageFromModel_StoredNull(t *testing.T) {
	null := datatypes.JSON("null")
	msg := messageFromModel(MessageModel{ID: "m", Content: &null})
	if msg.Content != nil {
		t.Errorf("Content = %q, want nil", msg.Content)
	}
}
