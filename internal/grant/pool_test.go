package grant

import "testing"

func TestAllocRevokeRoundTrip(t *testing.T) {
	p := NewSimPool(2)
	buf := []byte("hello")

	g1, err := p.Alloc(buf, true)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if g1 == InvalidGrant {
		t.Fatal("Alloc returned InvalidGrant for a live region")
	}

	region, readOnly, ok := p.Region(g1)
	if !ok || !readOnly || string(region) != "hello" {
		t.Fatalf("Region() = %q %v %v, want hello true true", region, readOnly, ok)
	}

	p.Revoke(g1)
	if _, _, ok := p.Region(g1); ok {
		t.Fatal("Region() still resolved a revoked grant")
	}
}

func TestAllocExhaustion(t *testing.T) {
	p := NewSimPool(1)
	if _, err := p.Alloc(nil, false); err != nil {
		t.Fatalf("first Alloc: %v", err)
	}
	if _, err := p.Alloc(nil, false); err != ErrExhausted {
		t.Fatalf("second Alloc err = %v, want ErrExhausted", err)
	}
}

func TestRevokeInvalidGrantIsNoop(t *testing.T) {
	p := NewSimPool(1)
	p.Revoke(InvalidGrant) // must not panic
}

func TestRevokeThenReuse(t *testing.T) {
	p := NewSimPool(1)
	g, _ := p.Alloc([]byte("a"), true)
	p.Revoke(g)

	g2, err := p.Alloc([]byte("b"), false)
	if err != nil {
		t.Fatalf("Alloc after revoke: %v", err)
	}
	if g2 != g {
		t.Fatalf("expected handle reuse, got %d want %d", g2, g)
	}
}
