package chat

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestTurnMarshalScalar(t *testing.T) {
	data, err := json.Marshal(TextTurn(RoleUser, "hello"))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"role":"user","content":"hello"}`
	if string(data) != want {
		t.Errorf("marshaled turn = %s, want %s", data, want)
	}
}

func TestTurnMarshalParts(t *testing.T) {
	turn := PartsTurn(RoleUser, []ContentPart{
		TextPart("hi"),
		ImagePart("data:image/png;base64,AAAA"),
	})
	data, err := json.Marshal(turn)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"role":"user","content":[{"type":"text","text":"hi"},{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}}]}`
	if string(data) != want {
		t.Errorf("marshaled turn = %s, want %s", data, want)
	}
}

func TestTurnUnmarshalScalar(t *testing.T) {
	var turn Turn
	if err := json.Unmarshal([]byte(`{"role":"assistant","content":"sure"}`), &turn); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if turn.Role != RoleAssistant {
		t.Errorf("role = %q, want %q", turn.Role, RoleAssistant)
	}
	if turn.Text != "sure" {
		t.Errorf("text = %q, want %q", turn.Text, "sure")
	}
	if turn.Parts != nil {
		t.Errorf("parts = %v, want nil", turn.Parts)
	}
}

func TestTurnUnmarshalRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown role", `{"role":"tool","content":"x"}`},
		{"empty string content", `{"role":"user","content":""}`},
		{"empty part array", `{"role":"user","content":[]}`},
		{"numeric content", `{"role":"user","content":42}`},
		{"unknown part type", `{"role":"user","content":[{"type":"audio","data":"x"}]}`},
		{"image part without url", `{"role":"user","content":[{"type":"image_url"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var turn Turn
			if err := json.Unmarshal([]byte(tc.doc), &turn); err == nil {
				t.Errorf("expected error for %s", tc.doc)
			}
		})
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	history := []Turn{
		TextTurn(RoleUser, "what is this?"),
		PartsTurn(RoleUser, []ContentPart{
			TextPart("look"),
			ImagePart("data:image/jpeg;base64,/9j/4AAQ"),
		}),
		TextTurn(RoleAssistant, "A photo."),
	}

	data, err := EncodeHistory(history)
	if err != nil {
		t.Fatalf("EncodeHistory error: %v", err)
	}

	got, err := DecodeHistory(data)
	if err != nil {
		t.Fatalf("DecodeHistory error: %v", err)
	}
	if !reflect.DeepEqual(got, history) {
		t.Errorf("round-trip mismatch\n got: %+v\nwant: %+v", got, history)
	}
}

func TestEncodeHistoryNil(t *testing.T) {
	data, err := EncodeHistory(nil)
	if err != nil {
		t.Fatalf("EncodeHistory error: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("nil history encoded as %s, want []", data)
	}
}

func TestDecodeHistoryRejectsNonArray(t *testing.T) {
	for _, doc := range []string{`{"role":"user"}`, `null`, `"hi"`, ``, `not json`} {
		if _, err := DecodeHistory([]byte(doc)); err == nil {
			t.Errorf("expected error for document %q", doc)
		}
	}
}
