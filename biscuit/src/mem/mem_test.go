package mem

import "testing"

func TestAllocDeallocReuse(t *testing.T) {
	Phys_init(0x1000, 4)
	f1, ok := Physmem.Alloc()
	if !ok {
		t.Fatal("alloc failed")
	}
	ppn := f1.Ppn()
	f1.Release()
	f2, ok := Physmem.Alloc()
	if !ok {
		t.Fatal("alloc failed")
	}
	if f2.Ppn() != ppn {
		t.Fatalf("expected recycled frame %v, got %v", ppn, f2.Ppn())
	}
}

func TestAllocExhaustion(t *testing.T) {
	Phys_init(0, 2)
	var got []*FrameTracker_t
	for i := 0; i < 2; i++ {
		f, ok := Physmem.Alloc()
		if !ok {
			t.Fatalf("alloc %d should have succeeded", i)
		}
		got = append(got, f)
	}
	if _, ok := Physmem.Alloc(); ok {
		t.Fatal("alloc should have failed once exhausted")
	}
	got[0].Release()
	if _, ok := Physmem.Alloc(); !ok {
		t.Fatal("alloc should succeed after release")
	}
}

func TestDoubleReleasePanics(t *testing.T) {
	Phys_init(0, 1)
	f, _ := Physmem.Alloc()
	f.Release()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double release")
		}
	}()
	f.Release()
}

func TestAllocIsZeroed(t *testing.T) {
	Phys_init(0, 1)
	f, _ := Physmem.Alloc()
	buf := f.Bytes()
	for i, b := range buf {
		if i > 16 {
			break
		}
		if b != 0 {
			t.Fatalf("expected zeroed frame, byte %d = %d", i, b)
		}
	}
}
