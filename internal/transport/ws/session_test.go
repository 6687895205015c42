package ws

import "testing"

func TestLatestSlotKeepsNewest(t *testing.T) {
	slot := newLatestSlot()
	for _, p := range []string{"a", "b", "c"} {
		slot.offer([]byte(p))
	}

	select {
	case got := <-slot.ch:
		if string(got) != "c" {
			t.Fatalf("got %q, want newest frame", got)
		}
	default:
		t.Fatal("slot is empty")
	}

	select {
	case got := <-slot.ch:
		t.Fatalf("slot must hold one frame, got extra %q", got)
	default:
	}
}
