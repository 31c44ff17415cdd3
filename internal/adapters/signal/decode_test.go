package signal

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Rendezvous/internal/adapters/rtc"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDP = "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\na=rtpmap:111 opus/48000/2\r\n"

func frame(t *testing.T, typ string, data any) []byte {
	t.Helper()
	env := map[string]any{"type": typ, "requestId": "req"}
	if data != nil {
		env["data"] = data
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

func sdpOf(typ string) map[string]string { return map[string]string{"type": typ, "sdp": testSDP} }

func TestDecodeCommands(t *testing.T) {
	d := Decoder{Validator: rtc.Validator{Strict: true}}
	cand := map[string]any{"candidate": "candidate:1 1 udp 2122260223 10.0.0.1 54321 typ host", "sdpMid": "0"}

	cases := []struct {
		name string
		in   []byte
		want core.Command
	}{
		{"ping", frame(t, core.EvPing, nil), core.Ping{}},
		{"whoami", frame(t, core.EvWhoAmI, nil), core.WhoAmIRequest{}},
		{"typing", frame(t, core.EvTypingStart, map[string]any{"receiverId": "bob"}), core.TypingStart{ReceiverID: "bob"}},
		{"read", frame(t, core.EvMessageRead, map[string]any{"messageIds": []string{"m"}, "senderId": "a"}),
			core.MessageRead{MessageIDs: []string{"m"}, SenderID: "a"}},
		{"reject", frame(t, core.EvCallReject, map[string]any{"callId": "c"}), core.CallReject{CallID: "c"}},
		{"live start without data", frame(t, core.EvLiveStart, nil), core.LiveStart{}},
		{"live start", frame(t, core.EvLiveStart, map[string]any{"title": "x"}), core.LiveStart{Title: "x"}},
		{"join", frame(t, core.EvLiveJoin, map[string]any{"streamId": "s"}), core.LiveJoin{StreamID: "s"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rid, cmd, err := d.Decode(c.in)
			require.NoError(t, err)
			assert.Equal(t, "req", rid)
			assert.Equal(t, c.want, cmd)
		})
	}

	t.Run("message", func(t *testing.T) {
		_, cmd, err := d.Decode(frame(t, core.EvMessageSend, map[string]any{
			"receiverId": "bob",
			"message":    map[string]any{"messageId": "m1", "content": "hi"},
		}))
		require.NoError(t, err)
		ms := cmd.(core.MessageSend)
		assert.Equal(t, domain.UserID("bob"), ms.ReceiverID)
		assert.Equal(t, "m1", ms.Message.ID)
	})

	t.Run("call initiate", func(t *testing.T) {
		_, cmd, err := d.Decode(frame(t, core.EvCallInitiate, map[string]any{"receiverId": "bob", "offer": sdpOf("offer")}))
		require.NoError(t, err)
		ci := cmd.(core.CallInitiate)
		assert.Empty(t, ci.CallID)
		assert.NotEmpty(t, ci.Offer)
	})

	t.Run("live signals", func(t *testing.T) {
		_, cmd, err := d.Decode(frame(t, core.EvLiveSignalOffer, map[string]any{"streamId": "s", "to": "v", "payload": sdpOf("offer")}))
		require.NoError(t, err)
		assert.Equal(t, core.SignalOffer, cmd.(core.LiveSignalRelay).Kind)

		_, cmd, err = d.Decode(frame(t, core.EvLiveSignalAnswer, map[string]any{"streamId": "s", "payload": sdpOf("answer")}))
		require.NoError(t, err)
		assert.Equal(t, core.EvLiveSignalAnswer, cmd.Event())

		_, cmd, err = d.Decode(frame(t, core.EvLiveSignalICE, map[string]any{"streamId": "s", "payload": cand}))
		require.NoError(t, err)
		assert.Equal(t, core.EvLiveSignalICE, cmd.Event())
	})
}

func TestDecodeRejects(t *testing.T) {
	d := Decoder{Validator: rtc.Validator{Strict: true}}

	cases := []struct {
		name string
		in   []byte
	}{
		{"not json", []byte("{")},
		{"unknown type", frame(t, "teleport", nil)},
		{"typing without receiver", frame(t, core.EvTypingStart, map[string]any{})},
		{"typing without data", frame(t, core.EvTypingStop, nil)},
		{"message without id", frame(t, core.EvMessageSend, map[string]any{"receiverId": "b", "message": map[string]any{}})},
		{"read without ids", frame(t, core.EvMessageRead, map[string]any{"senderId": "a"})},
		{"offer is an answer", frame(t, core.EvCallInitiate, map[string]any{"receiverId": "b", "offer": sdpOf("answer")})},
		{"offer not sdp", frame(t, core.EvCallInitiate, map[string]any{"receiverId": "b", "offer": map[string]string{"type": "offer", "sdp": "x"}})},
		{"answer without call", frame(t, core.EvCallAnswer, map[string]any{"answer": sdpOf("answer")})},
		{"bad candidate", frame(t, core.EvCallICECandidate, map[string]any{"callId": "c", "candidate": map[string]any{"candidate": "junk"}})},
		{"live offer without target", frame(t, core.EvLiveSignalOffer, map[string]any{"streamId": "s", "payload": sdpOf("offer")})},
		{"live answer without payload", frame(t, core.EvLiveSignalAnswer, map[string]any{"streamId": "s"})},
		{"live candidate null payload", frame(t, core.EvLiveSignalICE, map[string]any{"streamId": "s", "payload": nil})},
		{"join without stream", frame(t, core.EvLiveJoin, map[string]any{"streamId": ""})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, cmd, err := d.Decode(c.in)
			assert.Error(t, err)
			assert.Nil(t, cmd)
		})
	}
}

func TestDecodeLivePayloadIsOpaque(t *testing.T) {
	d := Decoder{Validator: rtc.Validator{Strict: true}}

	noMedia := map[string]string{"type": "offer", "sdp": "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n"}
	_, cmd, err := d.Decode(frame(t, core.EvLiveSignalOffer, map[string]any{"streamId": "s", "to": "v", "payload": noMedia}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n"}`, string(cmd.(core.LiveSignalRelay).Payload))

	_, cmd, err = d.Decode(frame(t, core.EvLiveSignalAnswer, map[string]any{"streamId": "s", "payload": sdpOf("offer")}))
	require.NoError(t, err)
	assert.Equal(t, core.SignalAnswer, cmd.(core.LiveSignalRelay).Kind)

	_, cmd, err = d.Decode(frame(t, core.EvLiveSignalICE, map[string]any{"streamId": "s", "payload": map[string]any{"candidate": "junk"}}))
	require.NoError(t, err)
	assert.Equal(t, core.SignalCandidate, cmd.(core.LiveSignalRelay).Kind)
}

func TestDecodeLenientSkipsSDPParsing(t *testing.T) {
	d := Decoder{}
	_, cmd, err := d.Decode(frame(t, core.EvCallAnswer, map[string]any{"callId": "c", "answer": map[string]string{"type": "answer", "sdp": "x"}}))
	require.NoError(t, err)
	assert.Equal(t, domain.CallID("c"), cmd.(core.CallAnswer).CallID)
}
