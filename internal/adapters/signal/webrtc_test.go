package signal_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	pionwebrtc "github.com/pion/webrtc/v4"

	"github.com/avolkov/peergate/internal/domain"
	"github.com/avolkov/peergate/internal/protocol"
)

// readSignalPayload skips membership notices and returns the next relayed
// payload.
func readSignalPayload(t *testing.T, c *websocket.Conn) []byte {
	t.Helper()
	for {
		msg := readMessage(t, c)
		if msg.Type == protocol.TypeSignal {
			return msg.Payload
		}
	}
}

// TestWebRTC_DataChannelThroughRelay drives a full offer/answer exchange
// between two pion peers with the relay as the only signaling path, then
// confirms the resulting data channel actually carries traffic.
func TestWebRTC_DataChannelThroughRelay(t *testing.T) {
	ts := newTestServer(t)

	offerWS := dial(t, ts, domain.OneToOne)
	answerWS := dial(t, ts, domain.OneToOne)
	join(t, offerWS, "rtc-probe")
	join(t, answerWS, "rtc-probe")
	readMessage(t, offerWS) // peer_joined for the answerer

	offerPC, err := pionwebrtc.NewPeerConnection(pionwebrtc.Configuration{})
	if err != nil {
		t.Fatalf("offer peer: %v", err)
	}
	t.Cleanup(func() { _ = offerPC.Close() })
	answerPC, err := pionwebrtc.NewPeerConnection(pionwebrtc.Configuration{})
	if err != nil {
		t.Fatalf("answer peer: %v", err)
	}
	t.Cleanup(func() { _ = answerPC.Close() })

	received := make(chan string, 1)
	answerPC.OnDataChannel(func(dc *pionwebrtc.DataChannel) {
		dc.OnMessage(func(msg pionwebrtc.DataChannelMessage) {
			received <- string(msg.Data)
		})
	})

	dc, err := offerPC.CreateDataChannel("probe", nil)
	if err != nil {
		t.Fatalf("data channel: %v", err)
	}
	dc.OnOpen(func() {
		if err := dc.SendText("ping"); err != nil {
			t.Errorf("send on data channel: %v", err)
		}
	})

	// Non-trickle: wait for gathering so each side ships one complete SDP.
	offer, err := offerPC.CreateOffer(nil)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	offerDone := pionwebrtc.GatheringCompletePromise(offerPC)
	if err := offerPC.SetLocalDescription(offer); err != nil {
		t.Fatalf("set local offer: %v", err)
	}
	<-offerDone
	sendDescription(t, offerWS, offerPC.LocalDescription())

	var remoteOffer pionwebrtc.SessionDescription
	if err := json.Unmarshal(readSignalPayload(t, answerWS), &remoteOffer); err != nil {
		t.Fatalf("decode offer: %v", err)
	}
	if err := answerPC.SetRemoteDescription(remoteOffer); err != nil {
		t.Fatalf("set remote offer: %v", err)
	}
	answer, err := answerPC.CreateAnswer(nil)
	if err != nil {
		t.Fatalf("create answer: %v", err)
	}
	answerDone := pionwebrtc.GatheringCompletePromise(answerPC)
	if err := answerPC.SetLocalDescription(answer); err != nil {
		t.Fatalf("set local answer: %v", err)
	}
	<-answerDone
	sendDescription(t, answerWS, answerPC.LocalDescription())

	var remoteAnswer pionwebrtc.SessionDescription
	if err := json.Unmarshal(readSignalPayload(t, offerWS), &remoteAnswer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if err := offerPC.SetRemoteDescription(remoteAnswer); err != nil {
		t.Fatalf("set remote answer: %v", err)
	}

	select {
	case got := <-received:
		if got != "ping" {
			t.Fatalf("data channel carried %q, want ping", got)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("data channel never delivered")
	}
}

func sendDescription(t *testing.T, c *websocket.Conn, desc *pionwebrtc.SessionDescription) {
	t.Helper()
	payload, err := json.Marshal(desc)
	if err != nil {
		t.Fatalf("encode description: %v", err)
	}
	sendSignal(t, c, nil, string(payload))
}
