package lib

import "bytes"
import "testing"
import "unsafe"

func TestMemcpy(t *testing.T) {
	src, dst := make([]byte, 100), make([]byte, 1024)
	for i := 0; i < len(src); i++ {
		src[i] = 0xAB
	}
	n := Memcpy(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), len(src))
	if n != len(src) {
		t.Fatalf("expected %v, got %v", len(src), n)
	} else if !bytes.Equal(dst[:len(src)], src) {
		t.Fatalf("Memcpy() failed")
	} else if dst[len(src)] != 0 {
		t.Fatalf("Memcpy() overflowed")
	}
	if n := Memcpy(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 0); n != 0 {
		t.Fatalf("expected %v, got %v", 0, n)
	}
}

func TestMemset(t *testing.T) {
	block := make([]byte, 64)
	Memset(unsafe.Pointer(&block[8]), 0xff, 16)
	for i, byt := range block {
		if i >= 8 && i < 24 && byt != 0xff {
			t.Fatalf("at %v expected 0xff, got %x", i, byt)
		} else if (i < 8 || i >= 24) && byt != 0 {
			t.Fatalf("at %v expected 0, got %x", i, byt)
		}
	}
}

func TestCeilRoundup(t *testing.T) {
	if x := Ceil(10, 4); x != 3 {
		t.Errorf("expected %v, got %v", 3, x)
	} else if x := Ceil(8, 4); x != 2 {
		t.Errorf("expected %v, got %v", 2, x)
	} else if x := Roundup(4097, 4096); x != 8192 {
		t.Errorf("expected %v, got %v", 8192, x)
	} else if x := Roundup(4096, 4096); x != 4096 {
		t.Errorf("expected %v, got %v", 4096, x)
	}
}

func TestPrettystats(t *testing.T) {
	stats := map[string]interface{}{"n_allocs": 10}
	if s := Prettystats(stats, false); s != `{"n_allocs":10}` {
		t.Errorf("unexpected %v", s)
	}
	if s := Prettystats(stats, true); s != "{\n  \"n_allocs\": 10\n}" {
		t.Errorf("unexpected %v", s)
	}
}
