package event

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"Chatline/internal/apperror"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
		want    any
		wantErr bool
	}{
		{"direct", EventSendDirectMessage, `{"recipientId":"bob","content":"hi"}`, &SendDirectMessage{}, false},
		{"group", EventSendGroupMessage, `{"groupId":"g","content":"hi","contentType":"image"}`, &SendGroupMessage{}, false},
		{"seen", EventMessageSeen, `{"messageId":"m"}`, &MessageSeen{}, false},
		{"add", EventAddParticipants, `{"groupId":"g","participantIds":["a"]}`, &AddParticipants{}, false},
		{"remove", EventRemoveUser, `{"groupId":"g","targetUserId":"u"}`, &RemoveUser{}, false},
		{"promote", EventMakeAdmin, `{"groupId":"g","targetUserId":"u"}`, &MakeAdmin{}, false},
		{"demote", EventRemoveAdmin, `{"groupId":"g","targetUserId":"u"}`, &RemoveAdmin{}, false},
		{"unknown event", "typing", `{}`, nil, true},
		{"missing payload", EventMessageSeen, ``, nil, true},
		{"malformed", EventMessageSeen, `{"messageId":1}`, nil, true},
		{"empty content", EventSendDirectMessage, `{"recipientId":"bob","content":"  "}`, nil, true},
		{"bad content type", EventSendGroupMessage, `{"groupId":"g","content":"hi","contentType":"gif"}`, nil, true},
		{"no participants", EventAddParticipants, `{"groupId":"g","participantIds":[""]}`, nil, true},
		{"no target", EventRemoveUser, `{"groupId":"g"}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(WsEvent{Event: tt.event, Payload: json.RawMessage(tt.payload)})
			if tt.wantErr {
				if !apperror.Is(err, apperror.KindValidation) {
					t.Errorf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if gotType, wantType := typeName(got), typeName(tt.want); gotType != wantType {
				t.Errorf("decoded %s, want %s", gotType, wantType)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *SendDirectMessage:
		return "SendDirectMessage"
	case *SendGroupMessage:
		return "SendGroupMessage"
	case *MessageSeen:
		return "MessageSeen"
	case *AddParticipants:
		return "AddParticipants"
	case *RemoveUser:
		return "RemoveUser"
	case *MakeAdmin:
		return "MakeAdmin"
	case *RemoveAdmin:
		return "RemoveAdmin"
	}
	return "unknown"
}

func TestDecodeKeepsTargetFields(t *testing.T) {
	got, err := Decode(WsEvent{Event: EventRemoveAdmin, Payload: json.RawMessage(`{"groupId":"g1","targetUserId":"bob"}`)})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	p := got.(*RemoveAdmin)
	if p.GroupID != "g1" || p.TargetUserID != "bob" {
		t.Errorf("payload = %+v", p)
	}
}

func TestEncodeMessagePayloadHasNullDeliveredTo(t *testing.T) {
	raw, err := Encode(EventSendDirectMessage, MessagePayload{ID: "m1", Content: "hi"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(raw), `"event":"send-direct-message"`) {
		t.Errorf("envelope = %s", raw)
	}
	if !strings.Contains(string(raw), `"deliveredTo":null`) {
		t.Errorf("deliveredTo not null: %s", raw)
	}
}

func TestNewErrorPayload(t *testing.T) {
	p := NewErrorPayload(apperror.Unauthorized("You are not an admin of group."))
	if p.Status != http.StatusUnauthorized || p.Message != "You are not an admin of group." {
		t.Errorf("payload = %+v", p)
	}

	p = NewErrorPayload(errors.New("socket closed"))
	if p.Status != http.StatusInternalServerError || p.Message != "internal server error" {
		t.Errorf("internal payload = %+v", p)
	}
}
