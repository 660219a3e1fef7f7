package log

import (
	"bytes"
	"testing"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerWire.String(), "WIRE"},
		{LayerSession.String(), "SESSION"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{MessageTypeCommand.String(), "COMMAND"},
		{MessageTypeResponse.String(), "RESPONSE"},
		{MessageTypeNotification.String(), "NOTIFICATION"},
		{MessageTypeUnsolicited.String(), "UNSOLICITED"},
		{StateEntityConnection.String(), "CONNECTION"},
		{StateEntitySession.String(), "SESSION"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseLayerAndCategory(t *testing.T) {
	if l, ok := ParseLayer("WIRE"); !ok || l != LayerWire {
		t.Errorf("ParseLayer(WIRE) = %v, %v", l, ok)
	}
	if _, ok := ParseLayer("nope"); ok {
		t.Error("ParseLayer accepted unknown name")
	}
	if c, ok := ParseCategory("ERROR"); !ok || c != CategoryError {
		t.Errorf("ParseCategory(ERROR) = %v, %v", c, ok)
	}
}

func TestNewFrameEvent(t *testing.T) {
	fe := NewFrameEvent([]byte("#RDR,3,1\r\n"))
	if fe.Size != 10 || fe.Truncated {
		t.Errorf("got size %d truncated %v", fe.Size, fe.Truncated)
	}

	line := bytes.Repeat([]byte("x"), MaxFrameData+10)
	fe = NewFrameEvent(line)
	if fe.Size != len(line) {
		t.Errorf("Size: got %d, want %d", fe.Size, len(line))
	}
	if !fe.Truncated || len(fe.Data) != MaxFrameData {
		t.Errorf("expected truncation to %d bytes, got %d", MaxFrameData, len(fe.Data))
	}

	line[0] = 'y'
	if fe.Data[0] != 'x' {
		t.Error("FrameEvent must copy its data")
	}
}
