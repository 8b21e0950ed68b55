package bloomset

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestAddContains(t *testing.T) {
	s, err := Create(filepath.Join(t.TempDir(), "live.bloom"), 1000)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	present := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")}
	for _, h := range present {
		s.Add(h)
	}

	for _, h := range present {
		if !s.Contains(h) {
			t.Errorf("Contains(%s) = false, want true", h)
		}
	}
}

func TestAddIdempotent(t *testing.T) {
	s, err := Create(filepath.Join(t.TempDir(), "live.bloom"), 1000)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	h := []byte("repeat-me")
	s.Add(h)
	s.Add(h)
	s.Add(h)

	if s.added != 1 {
		t.Errorf("added = %d, want 1 after three Adds of the same element", s.added)
	}
}

func TestNoFalseNegatives(t *testing.T) {
	s, err := Create(filepath.Join(t.TempDir(), "live.bloom"), 500)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	var added [][]byte
	for i := 0; i < 500; i++ {
		h := []byte(fmt.Sprintf("hash-%d", i))
		s.Add(h)
		added = append(added, h)
	}

	for _, h := range added {
		if !s.Contains(h) {
			t.Fatalf("Contains(%s) = false, want true (false negative)", h)
		}
	}
}

func TestContains_AbsentLikelyFalse(t *testing.T) {
	s, err := Create(filepath.Join(t.TempDir(), "live.bloom"), 1000)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	s.Add([]byte("only-member"))

	if s.Contains([]byte("never-added")) {
		t.Error("Contains() = true for an element never added (tolerable if rare, but not with this capacity headroom)")
	}
}

func TestCloseOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.bloom")

	s, err := Create(path, 200)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	members := [][]byte{[]byte("x"), []byte("y"), []byte("z")}
	for _, m := range members {
		s.Add(m)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	for _, m := range members {
		if !reopened.Contains(m) {
			t.Errorf("reopened Contains(%s) = false, want true", m)
		}
	}
	if reopened.numBits != s.numBits || reopened.k != s.k {
		t.Errorf("reopened params (%d, %d) != original (%d, %d)", reopened.numBits, reopened.k, s.numBits, s.k)
	}
}

func TestUnlink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.bloom")

	s, err := Create(path, 10)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if err := Unlink(path); err != nil {
		t.Fatalf("Unlink() error: %v", err)
	}
	if err := Unlink(path); err != nil {
		t.Errorf("Unlink() on already-removed path should be a no-op, got: %v", err)
	}
}

func TestPFalsePositive_MonotonicWithLoad(t *testing.T) {
	s, err := Create(filepath.Join(t.TempDir(), "live.bloom"), 100)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if p := s.PFalsePositive(); p != 0 {
		t.Errorf("PFalsePositive() on empty set = %v, want 0", p)
	}

	for i := 0; i < 100; i++ {
		s.Add([]byte(fmt.Sprintf("elem-%d", i)))
	}
	loaded := s.PFalsePositive()
	if loaded <= 0 || loaded > 1 {
		t.Errorf("PFalsePositive() after filling to capacity = %v, want in (0, 1]", loaded)
	}
}

func TestOptimalSizing(t *testing.T) {
	bits := optimalBits(1000, 0.01)
	k := optimalK(bits, 1000)

	if bits == 0 {
		t.Fatal("optimalBits() = 0")
	}
	if k == 0 {
		t.Fatal("optimalK() = 0")
	}
}
