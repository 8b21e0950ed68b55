// Package bloomset implements a fixed-capacity, disk-backed approximate
// membership set: a classic Bloom filter sized for an expected element
// count, persisted as a flat bit array behind a small header.
//
// No suitable bloom-filter library appears anywhere in the example
// corpus with a generic, verifiable hash-based API (the one third-party
// bloom package present in the retrieved repos is wired to a different,
// domain-specific log-bloom concept and is never exercised as a general
// membership set), so this is hand-rolled in the same spirit the object
// store hand-rolls its own binary pack/index codec rather than reach for
// an unverified dependency.
package bloomset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"os"
)

const magic uint32 = 0x626c6f6d // "blom"

// targetFalsePositiveRate is the design point create() optimizes k and the
// bit count for, given an expected element count.
const targetFalsePositiveRate = 0.01

// Set is a fixed-capacity Bloom filter backed by an in-memory bit array,
// durable at Close.
type Set struct {
	path     string
	bits     []uint64
	numBits  uint64
	k        uint64
	expected uint64
	added    uint64
}

// Create allocates a new Set sized for expected elements, picking the bit
// count and hash count that minimize the false-positive rate at that
// capacity. The backing file at path is not written until Close.
func Create(path string, expected uint64) (*Set, error) {
	if expected == 0 {
		expected = 1
	}

	numBits := optimalBits(expected, targetFalsePositiveRate)
	k := optimalK(numBits, expected)

	return &Set{
		path:     path,
		bits:     make([]uint64, (numBits+63)/64),
		numBits:  numBits,
		k:        k,
		expected: expected,
	}, nil
}

// Open loads a previously-closed Set from path.
func Open(path string) (*Set, error) {
	//nolint:gosec // G304: path is supplied by the GC driver, not untrusted input
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr [4 + 8 + 8 + 8]byte
	if _, err := readFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("bloomset: invalid header: %w", err)
	}
	if got := binary.BigEndian.Uint32(hdr[0:4]); got != magic {
		return nil, fmt.Errorf("bloomset: bad magic %x", got)
	}
	numBits := binary.BigEndian.Uint64(hdr[4:12])
	k := binary.BigEndian.Uint64(hdr[12:20])
	expected := binary.BigEndian.Uint64(hdr[20:28])

	words := (numBits + 63) / 64
	bits := make([]uint64, words)
	for i := range bits {
		var wb [8]byte
		if _, err := readFull(r, wb[:]); err != nil {
			return nil, fmt.Errorf("bloomset: truncated bit array: %w", err)
		}
		bits[i] = binary.BigEndian.Uint64(wb[:])
	}

	return &Set{path: path, bits: bits, numBits: numBits, k: k, expected: expected}, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Add marks hash as a member. Idempotent.
func (s *Set) Add(hash []byte) {
	wasNew := false
	for _, pos := range s.positions(hash) {
		word, bit := pos/64, pos%64
		before := s.bits[word]
		s.bits[word] |= 1 << bit
		if s.bits[word] != before {
			wasNew = true
		}
	}
	if wasNew {
		s.added++
	}
}

// Contains reports whether hash may be a member. Never false-negative;
// may be false-positive at approximately PFalsePositive().
func (s *Set) Contains(hash []byte) bool {
	for _, pos := range s.positions(hash) {
		word, bit := pos/64, pos%64
		if s.bits[word]&(1<<bit) == 0 {
			return false
		}
	}
	return true
}

// PFalsePositive estimates the current false-positive rate given the
// number of distinct elements actually added so far (not the original
// expected capacity), using the standard Bloom filter formula
// (1 - e^(-k*n/m))^k.
func (s *Set) PFalsePositive() float64 {
	if s.added == 0 {
		return 0
	}
	exponent := -float64(s.k) * float64(s.added) / float64(s.numBits)
	return math.Pow(1-math.Exp(exponent), float64(s.k))
}

// Close writes the bit array to disk and releases the Set. Safe to call
// more than once.
func (s *Set) Close() error {
	if s.path == "" {
		return nil
	}
	//nolint:gosec // G304: path is supplied by the GC driver, not untrusted input
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("bloomset: failed to create %s: %w", s.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var hdr [28]byte
	binary.BigEndian.PutUint32(hdr[0:4], magic)
	binary.BigEndian.PutUint64(hdr[4:12], s.numBits)
	binary.BigEndian.PutUint64(hdr[12:20], s.k)
	binary.BigEndian.PutUint64(hdr[20:28], s.expected)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	for _, word := range s.bits {
		var wb [8]byte
		binary.BigEndian.PutUint64(wb[:], word)
		if _, err := w.Write(wb[:]); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// Unlink removes the backing file at path. Called unconditionally by the
// GC driver's scoped acquisition once the Set is no longer needed,
// regardless of how the run ended.
func Unlink(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// positions computes the k bit positions for hash using the
// Kirsch-Mitzenmacher double-hashing construction: two independent
// 64-bit hashes combined as h1 + i*h2, avoiding k separate hash passes.
func (s *Set) positions(hash []byte) []uint64 {
	h1 := fnv.New64a()
	h1.Write(hash) //nolint:errcheck // hash.Hash.Write never fails
	sum1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write(hash) //nolint:errcheck // hash.Hash.Write never fails
	sum2 := h2.Sum64()
	if sum2 == 0 {
		sum2 = 1 // avoid degenerating to a single position when i*0 == 0 for all i
	}

	positions := make([]uint64, s.k)
	for i := uint64(0); i < s.k; i++ {
		positions[i] = (sum1 + i*sum2) % s.numBits
	}
	return positions
}

// optimalBits computes m, the bit-array size minimizing the false-positive
// rate p for n expected elements: m = ceil(-n*ln(p) / (ln2)^2).
func optimalBits(n uint64, p float64) uint64 {
	m := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	if m < 64 {
		m = 64
	}
	return uint64(m)
}

// optimalK computes k, the number of hash functions minimizing the
// false-positive rate for m bits and n expected elements: k = round((m/n)*ln2).
func optimalK(m, n uint64) uint64 {
	k := math.Round(float64(m) / float64(n) * math.Ln2)
	if k < 1 {
		k = 1
	}
	return uint64(k)
}
