package peerstate

import (
	"testing"
	"time"
)

func TestTimeoutActiveAndExpiry(t *testing.T) {
	var to Timeout[bool]
	if to.Active() {
		t.Fatal("unarmed timeout should not be active")
	}

	to.Set(true, 30*time.Millisecond)
	if !to.Active() {
		t.Fatal("expected active immediately after Set")
	}

	time.Sleep(60 * time.Millisecond)
	if to.Active() {
		t.Fatal("expected expired after deadline")
	}
}

func TestTimeoutClear(t *testing.T) {
	var to Timeout[bool]
	to.Set(true, time.Minute)
	to.Clear()
	if to.Active() {
		t.Fatal("expected cleared timeout to be inactive")
	}
}

func TestPeerRecordPong(t *testing.T) {
	p := NewPeer(Outbound)
	now := time.Now()
	p.RecordPing(42, now)

	if p.RecordPong(99, now.Add(10*time.Millisecond)) {
		t.Fatal("mismatched nonce should not record RTT")
	}
	if p.RTTMillis != -1 {
		t.Fatalf("RTTMillis = %d, want -1 after mismatch", p.RTTMillis)
	}

	if !p.RecordPong(42, now.Add(50*time.Millisecond)) {
		t.Fatal("matching nonce should record RTT")
	}
	if p.RTTMillis < 0 {
		t.Fatalf("RTTMillis = %d, want >= 0", p.RTTMillis)
	}
}
