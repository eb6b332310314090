package bitset

import "testing"

func TestRangeSet(t *testing.T) {
	b, err := New(20)
	if err != nil {
		t.Fatal(err)
	}
	b.Set(3, 7)
	for i := uint64(3); i < 10; i++ {
		if !b.IsSet(i) {
			t.Errorf("bit %d: want set", i)
		}
	}
	for _, i := range []uint64{0, 1, 2, 10, 11, 19} {
		if !b.IsCleared(i) {
			t.Errorf("bit %d: want cleared", i)
		}
	}

	b.Clear(5, 3)
	for i := uint64(5); i < 8; i++ {
		if !b.IsCleared(i) {
			t.Errorf("bit %d: want cleared after Clear", i)
		}
	}
	for _, i := range []uint64{3, 4, 8, 9} {
		if !b.IsSet(i) {
			t.Errorf("bit %d: want still set", i)
		}
	}
}

func TestSetAllClearAll(t *testing.T) {
	b, err := New(17)
	if err != nil {
		t.Fatal(err)
	}
	b.SetAll()
	for i := uint64(0); i < 17; i++ {
		if !b.IsSet(i) {
			t.Errorf("bit %d: want set after SetAll", i)
		}
	}
	if b.IsSet(17) {
		t.Errorf("bit past size must read as clear")
	}

	b.ClearAll()
	for i := uint64(0); i < 17; i++ {
		if !b.IsCleared(i) {
			t.Errorf("bit %d: want cleared after ClearAll", i)
		}
	}
}

func TestByteAlignedBoundaries(t *testing.T) {
	b, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	b.Set(8, 16) // exactly bytes 1-2
	for i := uint64(8); i < 24; i++ {
		if !b.IsSet(i) {
			t.Errorf("bit %d should be set", i)
		}
	}
	if b.IsSet(7) || b.IsSet(24) {
		t.Errorf("neighbors of an aligned run must stay clear")
	}
}

func TestOutOfRangeReadsAsClear(t *testing.T) {
	b, err := New(5)
	if err != nil {
		t.Fatal(err)
	}
	b.SetAll()
	if b.IsSet(5) {
		t.Errorf("bit 5 is past size 5 and must read as clear")
	}
	if !b.IsCleared(100) {
		t.Errorf("far out-of-range bit must read as cleared")
	}
}

func TestSetPanicsOnOutOfRange(t *testing.T) {
	b, err := New(10)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range Set")
		}
	}()
	b.Set(8, 5)
}
