package wire

import (
	"testing"

	"github.com/mcastellin/distkv/internal/address"
)

func TestEncodeDecodePing(t *testing.T) {
	m := Message{
		Type:            Ping,
		From:            address.New(2, 9901),
		SenderHeartbeat: 42,
		Digests: []Digest{
			{ID: 1, Port: 0, Heartbeat: 7},
			{ID: 3, Port: 9902, Heartbeat: 1},
		},
	}
	buf := m.Encode()
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != Ping || !got.From.Equal(m.From) || got.SenderHeartbeat != 42 {
		t.Fatalf("header mismatch: %+v", got)
	}
	if len(got.Digests) != 2 || got.Digests[1].ID != 3 || got.Digests[1].Heartbeat != 1 {
		t.Fatalf("digest mismatch: %+v", got.Digests)
	}
}

func TestEncodeDecodeCreate(t *testing.T) {
	m := Message{
		Type:    Create,
		From:    address.New(5, 9905),
		TransID: 12,
		Key:     "foo",
		Value:   "bar",
	}
	got, err := Decode(m.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TransID != 12 || got.Key != "foo" || got.Value != "bar" {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestEncodeDecodeReadReply(t *testing.T) {
	m := Message{
		Type:    ReadReply,
		From:    address.New(5, 9905),
		TransID: 12,
		Success: true,
		Value:   "bar",
	}
	got, err := Decode(m.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.Value != "bar" {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestDecodeTooShort(t *testing.T) {
	if _, err := Decode([]byte{byte(Ping)}); err == nil {
		t.Fatalf("expected error decoding short frame")
	}
}

func TestIsStabilization(t *testing.T) {
	m := Message{Type: Create, TransID: StabilizationTxID}
	if !m.IsStabilization() {
		t.Fatalf("expected stabilization create to be recognized")
	}
	m.TransID = 3
	if m.IsStabilization() {
		t.Fatalf("expected non-stabilization create")
	}
}
