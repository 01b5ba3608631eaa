package probability

import "testing"

func TestAdaptiveCDF16Uniform(t *testing.T) {
	c := NewAdaptiveCDF16()
	if c.Max() != 16 {
		t.Fatalf("Max() = %d, want 16", c.Max())
	}
	for i := 0; i < 16; i++ {
		if got, want := c.Cdf(i), uint16(i+1); got != want {
			t.Fatalf("Cdf(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestAdaptiveCDF16BlendSkews(t *testing.T) {
	c := NewAdaptiveCDF16()
	before := c.Cdf(4) - c.Cdf(3)
	for i := 0; i < 20; i++ {
		c.Blend(4, Rocket)
	}
	after := c.Cdf(4) - c.Cdf(3)
	if after <= before {
		t.Fatalf("repeatedly blending symbol 4 should raise its share: before=%d after=%d", before, after)
	}
	if c.Cdf(15) != c.Max() {
		t.Fatalf("Cdf(15) = %d, want Max() = %d", c.Cdf(15), c.Max())
	}
}

func TestAdaptiveCDF16Saturates(t *testing.T) {
	c := NewAdaptiveCDF16()
	for i := 0; i < 10000; i++ {
		c.Blend(uint8(i%16), Rocket)
	}
	if c.Max() == 0 {
		t.Fatal("Max() should never collapse to 0")
	}
}

func TestAdaptiveCDF16ClampsOutOfRangeSymbol(t *testing.T) {
	c := NewAdaptiveCDF16()
	c.Blend(200, Med)
	if c.Cdf(15) != c.Max() {
		t.Fatalf("Cdf(15) = %d, want Max() = %d after out-of-range blend", c.Cdf(15), c.Max())
	}
}

func TestAdaptiveCDF2Uniform(t *testing.T) {
	c := NewAdaptiveCDF2()
	if c.Prob()*2 != c.Max() {
		t.Fatalf("fresh CDF2 should be 50/50: Prob=%d Max=%d", c.Prob(), c.Max())
	}
}

func TestAdaptiveCDF2BlendSkews(t *testing.T) {
	c := NewAdaptiveCDF2()
	for i := 0; i < 20; i++ {
		c.Blend(1, Rocket)
	}
	if c.Prob()*2 <= c.Max() {
		t.Fatalf("repeatedly observing bit=1 should push Prob above half: Prob=%d Max=%d", c.Prob(), c.Max())
	}
}

func TestAdaptiveCDF2Saturates(t *testing.T) {
	c := NewAdaptiveCDF2()
	for i := 0; i < 10000; i++ {
		c.Blend(uint8(i%2), Rocket)
	}
	if c.Max() == 0 {
		t.Fatal("Max() should never collapse to 0")
	}
}

func TestSpeedParamsMonotonicDelta(t *testing.T) {
	speeds := []Speed{Geologic, Glacial, Slow, Med, Fast, Rocket}
	for i := 1; i < len(speeds); i++ {
		prev := speeds[i-1].params()
		cur := speeds[i].params()
		if cur.delta < prev.delta {
			t.Fatalf("speed %v delta %d should be >= speed %v delta %d", speeds[i], cur.delta, speeds[i-1], prev.delta)
		}
	}
}

func TestLogMaxPowerOfTwoOnly(t *testing.T) {
	c := NewAdaptiveCDF16()
	logMax, ok := c.LogMax()
	if !ok || logMax != 4 {
		t.Fatalf("fresh table: LogMax() = %d, %v, want 4, true", logMax, ok)
	}
	c.Blend(3, Med)
	if _, ok := c.LogMax(); ok {
		t.Fatal("total 24 is not a power of two, LogMax should report false")
	}

	b := NewAdaptiveCDF2()
	logMax, ok = b.LogMax()
	if !ok || logMax != 1 {
		t.Fatalf("fresh bit model: LogMax() = %d, %v, want 1, true", logMax, ok)
	}
	b.Blend(1, Med)
	if _, ok := b.LogMax(); ok {
		t.Fatal("total 10 is not a power of two, LogMax should report false")
	}
}
