package idhash

import (
	"testing"

	"github.com/mr-tron/base58"
)

func TestEventKey_Deterministic(t *testing.T) {
	line := []byte(`{"t":1700000000,"type":"trade","chart":3,"px":6502.25,"qty":2}`)

	k1 := EventKey(line)
	k2 := EventKey(line)
	if k1 != k2 {
		t.Errorf("Same line must hash to the same key: %s vs %s", k1, k2)
	}
}

func TestEventKey_DistinguishesLines(t *testing.T) {
	a := EventKey([]byte(`{"t":1700000000,"type":"trade","px":6502.25}`))
	b := EventKey([]byte(`{"t":1700000000,"type":"trade","px":6502.50}`))
	if a == b {
		t.Error("Different lines must hash to different keys")
	}
}

func TestEventKey_DecodesTo32Bytes(t *testing.T) {
	key := EventKey([]byte("x"))
	raw, err := base58.Decode(key)
	if err != nil {
		t.Fatalf("Key must be valid base58: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("Expected 32-byte digest, got %d", len(raw))
	}
}
