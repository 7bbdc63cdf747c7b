package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseFrameType(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
		err  bool
	}{
		{"request", `{"type":"req","id":"1","method":"health"}`, FrameTypeRequest, false},
		{"response", `{"type":"res","id":"1","ok":true}`, FrameTypeResponse, false},
		{"event", `{"type":"event","event":"tick"}`, FrameTypeEvent, false},
		{"missing type", `{"id":"1"}`, "", false},
		{"invalid json", `{`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFrameType([]byte(tc.data))
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got type %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResponseFrameRoundTrip(t *testing.T) {
	res := NewOKResponse("abc", map[string]any{"status": "ok"})
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}

	var decoded ResponseFrame
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.OK || decoded.ID != "abc" || decoded.Type != FrameTypeResponse {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
	if decoded.Error != nil {
		t.Errorf("expected nil error on OK response, got %+v", decoded.Error)
	}
}

func TestErrorResponseShape(t *testing.T) {
	res := NewErrorResponse("req-1", ErrNotFound, "unknown tool: frobnicate")
	if res.OK {
		t.Error("error response should have ok=false")
	}
	if res.Error == nil || res.Error.Code != ErrNotFound {
		t.Errorf("unexpected error shape: %+v", res.Error)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["payload"]; ok {
		t.Error("error response should omit payload")
	}
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(EventChat, map[string]string{"type": ChatEventRunStarted})
	if ev.Type != FrameTypeEvent || ev.Event != EventChat {
		t.Errorf("unexpected event frame: %+v", ev)
	}
}
