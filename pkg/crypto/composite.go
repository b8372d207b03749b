package crypto

import (
	"bytes"
	"sync/atomic"

	"github.com/remiblancher/pqhybrid/pkg/engine"
)

// CompositeKey holds the key material of one algorithm: a post-quantum key,
// optionally paired with a classical key.
//
// The private and public buffers use the layout of PrivateLayout and
// PublicLayout. Components are tracked as offset/length pairs into those
// buffers. Logical component ComponentCount()-1 is always the post-quantum
// key; for hybrids component 0 is the classical key, whatever the physical
// order of the bytes.
//
// A CompositeKey is immutable once constructed and may be shared between
// goroutines. It starts with one reference; the last Free zeroizes the
// private buffer.
type CompositeKey struct {
	desc           *AlgorithmDescriptor
	componentCount int
	reverseShare   bool

	privKey  []byte
	pubKey   []byte
	compPriv [2]span
	compPub  [2]span

	classical engine.ClassicalKey
	pq        engine.PQHandle

	refs     atomic.Int32
	released atomic.Bool
}

func newCompositeKey(d *AlgorithmDescriptor) *CompositeKey {
	k := &CompositeKey{
		desc:           d,
		componentCount: d.ComponentCount(),
		reverseShare:   d.ReverseShare,
		pq:             d.PQ,
	}
	k.refs.Store(1)
	return k
}

// setPrivate takes ownership of buf and recomputes the private views.
func (k *CompositeKey) setPrivate(buf []byte) error {
	cs, ps, err := PrivateLayout(k.desc).spans(buf)
	if err != nil {
		return err
	}
	k.privKey = buf
	k.compPriv = k.order(cs, ps)
	return nil
}

// setPublic takes ownership of buf and recomputes the public views.
func (k *CompositeKey) setPublic(buf []byte) error {
	cs, ps, err := PublicLayout(k.desc).spans(buf)
	if err != nil {
		return err
	}
	k.pubKey = buf
	k.compPub = k.order(cs, ps)
	return nil
}

// order places spans at their logical indexes.
func (k *CompositeKey) order(classical, pq span) [2]span {
	var views [2]span
	if k.componentCount == 2 {
		views[0] = classical
	}
	views[k.PQIndex()] = pq
	return views
}

// Algorithm returns the key's descriptor.
func (k *CompositeKey) Algorithm() *AlgorithmDescriptor { return k.desc }

// Category returns the algorithm category.
func (k *CompositeKey) Category() Category { return k.desc.Category }

// ComponentCount returns 2 for hybrid keys and 1 otherwise.
func (k *CompositeKey) ComponentCount() int { return k.componentCount }

// ReverseShare reports whether the post-quantum bytes precede the classical bytes.
func (k *CompositeKey) ReverseShare() bool { return k.reverseShare }

// PQIndex returns the logical index of the post-quantum component.
func (k *CompositeKey) PQIndex() int { return k.componentCount - 1 }

// ClassicalIndex returns the logical index of the classical component, or -1.
func (k *CompositeKey) ClassicalIndex() int {
	if k.componentCount == 2 {
		return 0
	}
	return -1
}

// HasPrivate reports whether the key holds private material.
func (k *CompositeKey) HasPrivate() bool {
	return k.privKey != nil && !k.released.Load()
}

// PrivateComponent returns a copy of private component i, or nil.
func (k *CompositeKey) PrivateComponent(i int) []byte {
	if !k.HasPrivate() || i < 0 || i >= k.componentCount {
		return nil
	}
	return bytes.Clone(k.compPriv[i].of(k.privKey))
}

// PublicComponent returns a copy of public component i, or nil.
func (k *CompositeKey) PublicComponent(i int) []byte {
	if k.released.Load() || i < 0 || i >= k.componentCount {
		return nil
	}
	return bytes.Clone(k.compPub[i].of(k.pubKey))
}

func (k *CompositeKey) pqPrivate() []byte { return k.compPriv[k.PQIndex()].of(k.privKey) }
func (k *CompositeKey) pqPublic() []byte  { return k.compPub[k.PQIndex()].of(k.pubKey) }

// Public returns a new public-only key sharing no memory with k.
func (k *CompositeKey) Public() (*CompositeKey, error) {
	if err := k.live(); err != nil {
		return nil, err
	}
	pk := newCompositeKey(k.desc)
	if err := pk.setPublic(bytes.Clone(k.pubKey)); err != nil {
		return nil, err
	}
	if k.classical != nil {
		pk.classical = k.classical.Public()
	}
	return pk, nil
}

// UpRef takes an additional reference to k.
func (k *CompositeKey) UpRef() error {
	for {
		n := k.refs.Load()
		if n <= 0 {
			return ErrKeyReleased
		}
		if k.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Free drops one reference. Dropping the last one zeroizes the key material
// and detaches the engine keys; further use returns ErrKeyReleased.
func (k *CompositeKey) Free() {
	if k.refs.Add(-1) != 0 {
		return
	}
	if !k.released.CompareAndSwap(false, true) {
		return
	}
	engine.Zeroize(k.privKey)
	engine.Zeroize(k.pubKey)
	k.privKey = nil
	k.pubKey = nil
	k.compPriv = [2]span{}
	k.compPub = [2]span{}
	engine.Destroy(k.classical)
	k.classical = nil
	k.pq = nil
}

func (k *CompositeKey) live() error {
	if k.released.Load() {
		return ErrKeyReleased
	}
	return nil
}

func (k *CompositeKey) requirePrivate() error {
	if err := k.live(); err != nil {
		return err
	}
	if k.privKey == nil {
		return ErrNoPrivateKey
	}
	return nil
}
