package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrNotFound,
		ErrInvalidTarget,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := DecodeBase([]byte(`{"type":"LOOKUP","protocol_version":"1.0","id":"q1","block":"minecraft:fence"}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if b.Type != TypeLookup || b.ID != "q1" || b.ProtocolVersion != Version {
		t.Fatalf("base=%+v", b)
	}
	if _, err := DecodeBase([]byte(`{`)); err == nil {
		t.Fatalf("expected error")
	}
}
