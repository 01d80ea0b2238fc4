package sketchsearch

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"sort"
)

// MinHash is the reference Sketch implementation: a bounded multiset of
// hashes held as a sorted slice, which supports O(log n) membership via
// binary search and linear-time merge-intersection of two sorted slices
// (spec §9's "Set operations" note).
type MinHash struct {
	name           string
	filename       string
	ksize          int
	moltype        Moltype
	trackAbundance bool
	scaled         uint64 // 0 means unbounded
	maxHash        uint64
	maxHashSet     bool

	hashes  []uint64          // sorted, deduplicated
	abunds  map[uint64]uint64 // only populated if trackAbundance
}

// NewMinHash constructs an empty MinHash at the given resolution. scaled
// may be 0 for an unbounded sketch (no max_hash).
func NewMinHash(name string, ksize int, moltype Moltype, scaled uint64, trackAbundance bool) *MinHash {
	m := &MinHash{
		name:           name,
		ksize:          ksize,
		moltype:        moltype,
		trackAbundance: trackAbundance,
		scaled:         scaled,
	}
	if scaled > 0 {
		m.maxHash = NewMaxHash(scaled)
		m.maxHashSet = true
	}
	if trackAbundance {
		m.abunds = make(map[uint64]uint64)
	}
	return m
}

func (m *MinHash) Name() string          { return m.name }
func (m *MinHash) Filename() string      { return m.filename }
func (m *MinHash) KSize() int            { return m.ksize }
func (m *MinHash) Moltype() Moltype      { return m.moltype }
func (m *MinHash) TrackAbundance() bool  { return m.trackAbundance }
func (m *MinHash) Scaled() uint64        { return m.scaled }

func (m *MinHash) MaxHashBound() (uint64, bool) {
	return m.maxHash, m.maxHashSet
}

// SetFilename records which database file this sketch was loaded from; it is
// not part of the Sketch content identity.
func (m *MinHash) SetFilename(f string) { m.filename = f }

func (m *MinHash) find(h uint64) (int, bool) {
	i := sort.Search(len(m.hashes), func(i int) bool { return m.hashes[i] >= h })
	return i, i < len(m.hashes) && m.hashes[i] == h
}

// AddMany bulk-inserts hashes, enforcing the max_hash bound when set and
// incrementing abundance counts when TrackAbundance is true.
func (m *MinHash) AddMany(hashes []Hash) {
	for _, h := range hashes {
		if m.maxHashSet && h >= m.maxHash {
			continue
		}
		i, ok := m.find(h)
		if !ok {
			m.hashes = append(m.hashes, 0)
			copy(m.hashes[i+1:], m.hashes[i:])
			m.hashes[i] = h
		}
		if m.trackAbundance {
			m.abunds[h]++
		}
	}
}

// AddManyWithAbundance inserts hashes at explicit abundance counts, for
// constructing test fixtures and for manifest/signature loaders that carry
// counts out of band.
func (m *MinHash) AddManyWithAbundance(counts map[uint64]uint64) {
	for h, c := range counts {
		if m.maxHashSet && h >= m.maxHash {
			continue
		}
		i, ok := m.find(h)
		if !ok {
			m.hashes = append(m.hashes, 0)
			copy(m.hashes[i+1:], m.hashes[i:])
			m.hashes[i] = h
		}
		if m.trackAbundance {
			m.abunds[h] += c
		}
	}
}

func (m *MinHash) GetHashes() []Hash {
	out := make([]Hash, len(m.hashes))
	copy(out, m.hashes)
	return out
}

func (m *MinHash) GetMins(withAbundance bool) map[Hash]uint64 {
	out := make(map[Hash]uint64, len(m.hashes))
	for _, h := range m.hashes {
		if withAbundance && m.trackAbundance {
			out[h] = m.abunds[h]
		} else {
			out[h] = 1
		}
	}
	return out
}

func (m *MinHash) CopyAndClear() Sketch {
	clone := &MinHash{
		name:           m.name,
		filename:       m.filename,
		ksize:          m.ksize,
		moltype:        m.moltype,
		trackAbundance: m.trackAbundance,
		scaled:         m.scaled,
		maxHash:        m.maxHash,
		maxHashSet:     m.maxHashSet,
	}
	if m.trackAbundance {
		clone.abunds = make(map[uint64]uint64)
	}
	return clone
}

// Downsample returns a new MinHash at a coarser (or equal) resolution;
// hashes above the new bound are dropped. Downsampling to a finer
// resolution is forbidden (spec §3 invariant).
func (m *MinHash) Downsample(scaled uint64) (Sketch, error) {
	if scaled < m.scaled {
		return nil, ErrFinerDownsample
	}
	if scaled == m.scaled {
		out := m.CopyAndClear().(*MinHash)
		out.AddMany(m.GetHashes())
		if m.trackAbundance {
			for h, c := range m.abunds {
				out.abunds[h] = c
			}
		}
		return out, nil
	}
	out := NewMinHash(m.name, m.ksize, m.moltype, scaled, m.trackAbundance)
	out.filename = m.filename
	newMax := out.maxHash
	for _, h := range m.hashes {
		if h >= newMax {
			continue
		}
		out.hashes = append(out.hashes, h)
		if m.trackAbundance {
			out.abunds[h] = m.abunds[h]
		}
	}
	return out, nil
}

func compatible(a, b *MinHash) error {
	if a.ksize != b.ksize || a.moltype != b.moltype {
		return ErrMoltypeMismatch
	}
	return nil
}

func asMinHash(s Sketch) (*MinHash, error) {
	m, ok := s.(*MinHash)
	if !ok {
		return nil, fmt.Errorf("sketchsearch: %T is not a *MinHash", s)
	}
	return m, nil
}

// reconcile downsamples a and b to the coarser of their two resolutions,
// per spec §3's similarity/contained_by contract.
func reconcile(a, b *MinHash, downsample bool) (*MinHash, *MinHash, error) {
	if err := compatible(a, b); err != nil {
		return nil, nil, err
	}
	if a.scaled == b.scaled {
		return a, b, nil
	}
	if !downsample {
		return nil, nil, ErrResolutionMismatch
	}
	target := a.scaled
	if b.scaled > target {
		target = b.scaled
	}
	var err error
	var da, db Sketch = a, b
	if a.scaled != target {
		if da, err = a.Downsample(target); err != nil {
			return nil, nil, err
		}
	}
	if b.scaled != target {
		if db, err = b.Downsample(target); err != nil {
			return nil, nil, err
		}
	}
	ma, _ := asMinHash(da)
	mb, _ := asMinHash(db)
	return ma, mb, nil
}

func intersectCount(a, b []uint64) int {
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}

func unionCount(a, b []uint64) int {
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			i++
			j++
		}
		n++
	}
	n += len(a) - i
	n += len(b) - j
	return n
}

func (m *MinHash) Similarity(other Sketch, downsample bool) (float64, error) {
	ob, err := asMinHash(other)
	if err != nil {
		return 0, err
	}
	a, b, err := reconcile(m, ob, downsample)
	if err != nil {
		return 0, err
	}
	union := unionCount(a.hashes, b.hashes)
	if union == 0 {
		return 0, nil
	}
	return float64(intersectCount(a.hashes, b.hashes)) / float64(union), nil
}

func (m *MinHash) ContainedBy(other Sketch, downsample bool) (float64, error) {
	ob, err := asMinHash(other)
	if err != nil {
		return 0, err
	}
	a, b, err := reconcile(m, ob, downsample)
	if err != nil {
		return 0, err
	}
	if len(a.hashes) == 0 {
		return 0, nil
	}
	return float64(intersectCount(a.hashes, b.hashes)) / float64(len(a.hashes)), nil
}

// SimilarityIgnoreMaxHash computes Jaccard over the raw hash sets,
// disregarding any max_hash bound on either side. Used during gather, where
// the residual query has had its bound lifted.
func (m *MinHash) SimilarityIgnoreMaxHash(other Sketch) float64 {
	ob, err := asMinHash(other)
	if err != nil {
		return 0
	}
	union := unionCount(m.hashes, ob.hashes)
	if union == 0 {
		return 0
	}
	return float64(intersectCount(m.hashes, ob.hashes)) / float64(union)
}

// MD5Sum is a deterministic content digest: sorted hashes (little-endian),
// then ksize, moltype, and the abundance flag. Insertion order never
// affects the result because m.hashes is kept sorted.
func (m *MinHash) MD5Sum() string {
	h := md5.New()
	var buf [8]byte
	for _, v := range m.hashes {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	fmt.Fprintf(h, "|k=%d|mol=%d|abund=%t", m.ksize, m.moltype, m.trackAbundance)
	return fmt.Sprintf("%x", h.Sum(nil))
}
