package crypto

import (
	"bytes"
	"math"

	"golang.org/x/crypto/cryptobyte"
)

// lengthPrefixLen is the size of the big-endian classical length header.
const lengthPrefixLen = 4

// span locates a component inside its owning buffer.
type span struct {
	off int
	n   int
}

func (s span) of(buf []byte) []byte {
	return buf[s.off : s.off+s.n : s.off+s.n]
}

// Layout describes how one composite buffer (private or public) is laid out.
//
// Hybrid buffers are u32be(L) || classical(L) || pq, or
// u32be(L) || pq || classical(L) when Reverse is set. L is always the
// classical length. Plain buffers hold the post-quantum key alone.
type Layout struct {
	Name         string
	Hybrid       bool
	ClassicalMax int
	PQLen        int
	Reverse      bool
}

// PrivateLayout returns the private key layout of d.
func PrivateLayout(d *AlgorithmDescriptor) Layout {
	l := Layout{Name: d.Name, PQLen: d.PQ.PrivateKeySize()}
	if d.IsHybrid() {
		l.Hybrid = true
		l.ClassicalMax = d.Classical.PrivLen
		l.Reverse = d.ReverseShare
	}
	return l
}

// PublicLayout returns the public key layout of d.
func PublicLayout(d *AlgorithmDescriptor) Layout {
	l := Layout{Name: d.Name, PQLen: d.PQ.PublicKeySize()}
	if d.IsHybrid() {
		l.Hybrid = true
		l.ClassicalMax = d.Classical.PubLen
		l.Reverse = d.ReverseShare
	}
	return l
}

// MaxLen returns the largest buffer the layout accepts.
func (l Layout) MaxLen() int {
	if !l.Hybrid {
		return l.PQLen
	}
	return lengthPrefixLen + l.ClassicalMax + l.PQLen
}

// Split returns views of the classical and post-quantum components of buf.
// The classical view is nil for plain layouts. The views alias buf.
func (l Layout) Split(buf []byte) (classical, pq []byte, err error) {
	cs, ps, err := l.spans(buf)
	if err != nil {
		return nil, nil, err
	}
	if l.Hybrid {
		classical = cs.of(buf)
	}
	return classical, ps.of(buf), nil
}

func (l Layout) spans(buf []byte) (classical, pq span, err error) {
	if !l.Hybrid {
		if len(buf) != l.PQLen {
			return span{}, span{}, formatErrorf("split", l.Name, "key is %d bytes, want %d", len(buf), l.PQLen)
		}
		return span{}, span{off: 0, n: len(buf)}, nil
	}

	s := cryptobyte.String(buf)
	var n uint32
	if !s.ReadUint32(&n) {
		return span{}, span{}, formatErrorf("split", l.Name, "missing length prefix")
	}
	if n == 0 || uint64(n) > uint64(l.ClassicalMax) {
		return span{}, span{}, formatErrorf("split", l.Name, "classical length %d outside 1..%d", n, l.ClassicalMax)
	}
	cl := int(n)
	if remaining := len(s) - cl; remaining != l.PQLen {
		return span{}, span{}, formatErrorf("split", l.Name, "post-quantum component is %d bytes, want %d", remaining, l.PQLen)
	}

	if l.Reverse {
		return span{off: lengthPrefixLen + l.PQLen, n: cl}, span{off: lengthPrefixLen, n: l.PQLen}, nil
	}
	return span{off: lengthPrefixLen, n: cl}, span{off: lengthPrefixLen + cl, n: l.PQLen}, nil
}

// Concat builds a composite buffer from its components. For plain layouts
// classical must be empty and the result is a copy of pq.
func (l Layout) Concat(classical, pq []byte) ([]byte, error) {
	if len(pq) != l.PQLen {
		return nil, formatErrorf("concat", l.Name, "post-quantum component is %d bytes, want %d", len(pq), l.PQLen)
	}
	if !l.Hybrid {
		if len(classical) != 0 {
			return nil, formatErrorf("concat", l.Name, "classical component given for a plain algorithm")
		}
		return bytes.Clone(pq), nil
	}
	if len(classical) == 0 || len(classical) > l.ClassicalMax || uint64(len(classical)) > math.MaxUint32 {
		return nil, formatErrorf("concat", l.Name, "classical component is %d bytes, want 1..%d", len(classical), l.ClassicalMax)
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, lengthPrefixLen+len(classical)+len(pq)))
	b.AddUint32(uint32(len(classical)))
	if l.Reverse {
		b.AddBytes(pq)
		b.AddBytes(classical)
	} else {
		b.AddBytes(classical)
		b.AddBytes(pq)
	}
	out, err := b.Bytes()
	if err != nil {
		return nil, formatErrorf("concat", l.Name, "%v", err)
	}
	return out, nil
}
