package framegate

import "testing"

func TestGateOneInN(t *testing.T) {
	for _, n := range []int{1, 2, 5, 7, 30} {
		g := New(n)
		for window := 0; window < 4; window++ {
			targets := 0
			for i := 0; i < n; i++ {
				if g.Tick() {
					targets++
				}
			}
			if targets != 1 {
				t.Fatalf("interval %d window %d: %d targets, want 1", n, window, targets)
			}
		}
	}
}

func TestGateSlidingWindow(t *testing.T) {
	const n = 4
	g := New(n)
	hits := make([]bool, 40)
	for i := range hits {
		hits[i] = g.Tick()
	}
	for start := 0; start+n <= len(hits); start++ {
		count := 0
		for _, hit := range hits[start : start+n] {
			if hit {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("window starting at %d has %d targets", start, count)
		}
	}
}

func TestGateFirstFrameIsTarget(t *testing.T) {
	g := New(5)
	if !g.Tick() {
		t.Fatal("first frame after start should be a target")
	}
	for i := 0; i < 4; i++ {
		if g.Tick() {
			t.Fatalf("frame %d should not be a target", i+1)
		}
	}
}

func TestGateResetAndInterval(t *testing.T) {
	g := New(3)
	g.Tick()
	g.Tick()
	g.Reset()
	if !g.Tick() {
		t.Fatal("Reset should make the next frame a target")
	}

	g.SetInterval(100)
	if g.Interval() != 30 {
		t.Fatalf("interval = %d, want clamp to 30", g.Interval())
	}
	if !g.Tick() {
		t.Fatal("SetInterval should reset the counter")
	}

	if New(0).Interval() != 1 {
		t.Fatal("interval below 1 should clamp to 1")
	}
}
