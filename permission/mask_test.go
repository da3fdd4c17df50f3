package permission

import "testing"

func TestMaskSetHas(t *testing.T) {
	m := NewMask(0, 3, 63, 64, 127)

	for _, bit := range []uint{0, 3, 63, 64, 127} {
		if !m.Has(bit) {
			t.Fatalf("expected bit %d to be set", bit)
		}
	}
	for _, bit := range []uint{1, 2, 62, 65, 126} {
		if m.Has(bit) {
			t.Fatalf("expected bit %d to be clear", bit)
		}
	}
	if m.Count() != 5 {
		t.Fatalf("expected 5 bits set, got %d", m.Count())
	}
}

func TestMaskSetOutOfRange(t *testing.T) {
	var m Mask
	if _, err := m.Set(MaskBits); err != ErrBitOutOfRange {
		t.Fatalf("expected ErrBitOutOfRange, got %v", err)
	}
	if m.Has(MaskBits + 10) {
		t.Fatal("out-of-range Has must report false")
	}
}

func TestMaskSetOperations(t *testing.T) {
	a := NewMask(1, 2, 70)
	b := NewMask(2, 3, 71)

	union := a.Union(b)
	for _, bit := range []uint{1, 2, 3, 70, 71} {
		if !union.Has(bit) {
			t.Fatalf("union missing bit %d", bit)
		}
	}

	inter := a.Intersect(b)
	if !inter.Has(2) || inter.Count() != 1 {
		t.Fatalf("unexpected intersection: %v", inter)
	}

	without := a.Without(b)
	if without.Has(2) || !without.Has(1) || !without.Has(70) {
		t.Fatalf("unexpected difference: %v", without)
	}

	if !a.HasAll(NewMask(1, 70)) {
		t.Fatal("HasAll failed for subset")
	}
	if a.HasAll(NewMask(1, 3)) {
		t.Fatal("HasAll must fail when a bit is missing")
	}
	if !a.HasAny(NewMask(3, 70)) {
		t.Fatal("HasAny failed for overlapping mask")
	}
}

func TestEffectiveDenyWins(t *testing.T) {
	role := NewMask(1, 2, 3)
	o := Overrides{
		Grant: NewMask(2, 9),
		Deny:  NewMask(2, 3),
	}

	eff := Effective(role, o)

	// Denied bits lose even when granted by role AND override.
	if eff.Has(2) || eff.Has(3) {
		t.Fatal("deny override did not win")
	}
	if !eff.Has(1) || !eff.Has(9) {
		t.Fatal("expected role bit 1 and granted bit 9")
	}
}

func TestMaskCodecRoundTrip(t *testing.T) {
	cases := []Mask{
		{},
		NewMask(0),
		NewMask(63, 64),
		NewMask(0, 1, 2, 125, 126, 127),
	}

	for _, m := range cases {
		decoded, err := DecodeMask(m.Encode())
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded != m {
			t.Fatalf("round trip mismatch: %v != %v", decoded, m)
		}
	}
}

func TestDecodeMaskRejectsGarbage(t *testing.T) {
	for _, s := range []string{"short", "!!!!!!!!!!!!!!!!!!!!!!", "AAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
		if _, err := DecodeMask(s); err == nil {
			t.Fatalf("expected decode error for %q", s)
		}
	}

	// Empty string is the documented degrade-to-zero case.
	m, err := DecodeMask("")
	if err != nil || !m.IsZero() {
		t.Fatalf("empty string must decode to zero mask, got %v, %v", m, err)
	}
}

func TestRegistryAssignsStableBits(t *testing.T) {
	r := NewRegistry(false)

	first, err := r.Register("scripts:read")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	second, err := r.Register("scripts:write")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if first != 0 || second != 1 {
		t.Fatalf("unexpected bit assignment: %d, %d", first, second)
	}

	if _, err := r.Register("scripts:read"); err == nil {
		t.Fatal("duplicate registration must fail")
	}

	r.Freeze()
	if _, err := r.Register("scripts:delete"); err == nil {
		t.Fatal("registration after freeze must fail")
	}

	bit, ok := r.Bit("scripts:write")
	if !ok || bit != 1 {
		t.Fatalf("lookup after freeze failed: %d, %v", bit, ok)
	}
}

func TestRegistryRootReserved(t *testing.T) {
	r := NewRegistry(true)

	rootBit, ok := r.RootBit()
	if !ok || rootBit != MaskBits-1 {
		t.Fatalf("unexpected root bit: %d, %v", rootBit, ok)
	}

	for i := 0; i < int(rootBit); i++ {
		if _, err := r.Register(string(rune('a'+i%26)) + string(rune('0'+i/26))); err != nil {
			t.Fatalf("register %d failed: %v", i, err)
		}
	}
	if _, err := r.Register("one-too-many"); err == nil {
		t.Fatal("registration into reserved root bit must fail")
	}
}

func TestRoleManager(t *testing.T) {
	r := NewRegistry(false)
	for _, name := range []string{"scripts:read", "scripts:write", "admin:manage"} {
		if _, err := r.Register(name); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	r.Freeze()

	rm := NewRoleManager(r)
	if err := rm.RegisterRole("viewer", "scripts:read"); err != nil {
		t.Fatalf("viewer role failed: %v", err)
	}
	if err := rm.RegisterRole("editor", "scripts:read", "scripts:write"); err != nil {
		t.Fatalf("editor role failed: %v", err)
	}
	if err := rm.RegisterRole("editor", "scripts:read"); err == nil {
		t.Fatal("duplicate role must fail")
	}
	if err := rm.RegisterRole("ghost", "does:not:exist"); err == nil {
		t.Fatal("role over unknown permission must fail")
	}

	editor, ok := rm.MaskFor("editor")
	if !ok || editor.Count() != 2 {
		t.Fatalf("unexpected editor mask: %v, %v", editor, ok)
	}

	if v := rm.Version(); v != 1 {
		t.Fatalf("fresh manager version = %d", v)
	}
	if v := rm.BumpVersion(); v != 2 {
		t.Fatalf("bumped version = %d", v)
	}

	rm.Freeze()
	if err := rm.RegisterRole("late", "scripts:read"); err == nil {
		t.Fatal("role registration after freeze must fail")
	}
}
