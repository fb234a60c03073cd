package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"tandem/errors"
)

func TestParseChatEvent_Add(t *testing.T) {
	req := require.New(t)

	evt, err := ParseChatEvent([]byte(`{"type":"add","id":"m1","user":"Alice","role":"user","content":"it's \"quoted\""}`))

	req.NoError(err)
	req.Equal(EventAdd, evt.Type)
	req.Equal(ChatMessage{ID: "m1", User: "Alice", Role: RoleUser, Content: `it's "quoted"`}, evt.ChatMessage)
}

func TestParseChatEvent_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"type":`,
		"unknown type": `{"type":"all","id":"m1","role":"user"}`,
		"missing id":   `{"type":"add","role":"user","content":"hi"}`,
		"bad role":     `{"type":"update","id":"m1","role":"robot"}`,
		"wrong shape":  `["add"]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseChatEvent([]byte(raw))
			require.ErrorIs(t, err, errors.ErrMalformedEvent)
		})
	}
}

func TestParseChatEvent_Names_Failing_Fields(t *testing.T) {
	req := require.New(t)

	_, err := ParseChatEvent([]byte(`{"type":"add","role":"robot"}`))

	req.ErrorIs(err, errors.ErrMalformedEvent)
	req.Equal("malformed event: id: required; role: oneof=user assistant", err.Error())
}

func TestSnapshotEvent_EncodesEmptyHistoryAsArray(t *testing.T) {
	req := require.New(t)

	bytes, err := json.Marshal(NewSnapshotEvent(nil))

	req.NoError(err)
	req.JSONEq(`{"type":"all","messages":[]}`, string(bytes))
}
