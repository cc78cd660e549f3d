package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name    string
		cb      *tele.Callback
		key     string
		payload string
	}{
		{name: "nil", cb: nil},
		{name: "raw with payload", cb: &tele.Callback{Data: "\fadd|Магній 500 PRO"}, key: "add", payload: "Магній 500 PRO"},
		{name: "raw without payload", cb: &tele.Callback{Data: "\fcart"}, key: "cart"},
		{name: "payload keeps separators", cb: &tele.Callback{Data: "\fpay|a|b"}, key: "pay", payload: "a|b"},
		{name: "already routed", cb: &tele.Callback{Unique: "inc", Data: "HEALTH KIT"}, key: "inc", payload: "HEALTH KIT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.payload, payload)
		})
	}
}
