package playlist

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/desertthunder/plsd/internal/protocol"
)

// Rand is the random source used to resolve the shuffle pool.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Playlist is a named, ordered collection of object ids.
type Playlist struct {
	ID       uint32
	Name     string
	Repeat   bool
	UseCount int

	items     []string
	order     []int // visual index -> playing slot, nil when unshuffled
	inverse   []int // playing slot -> visual index
	poolStart int
	dirty     bool
	rnd       Rand
}

// New returns an empty, unshuffled playlist marked dirty.
func New(id uint32, name string) (*Playlist, error) {
	if name == "" {
		return nil, protocol.ErrInvalidName
	}
	return &Playlist{ID: id, Name: name, dirty: true, rnd: globalRand{}}, nil
}

// Restore rebuilds a playlist from persisted state. slots holds the playing slot of every item and is ignored
// unless shuffled is set. The result is clean.
func Restore(id uint32, name string, repeat bool, items []string, shuffled bool, slots []int, poolStart int) (*Playlist, error) {
	p, err := New(id, name)
	if err != nil {
		return nil, err
	}
	p.Repeat = repeat
	p.items = slices.Clone(items)

	if shuffled {
		if len(slots) != len(items) {
			return nil, fmt.Errorf("%d slots for %d items", len(slots), len(items))
		}
		p.order = slices.Clone(slots)
		p.inverse = make([]int, len(slots))
		for i := range p.inverse {
			p.inverse[i] = -1
		}
		for v, s := range p.order {
			if s < 0 || s >= len(p.order) || p.inverse[s] != -1 {
				return nil, fmt.Errorf("slot %d of item %d is not a permutation entry", s, v)
			}
			p.inverse[s] = v
		}
		p.poolStart = poolStart
	} else if poolStart != 0 {
		return nil, fmt.Errorf("pool start %d on an unshuffled playlist", poolStart)
	}

	if err := p.Check(); err != nil {
		return nil, err
	}
	p.dirty = false
	return p, nil
}

// SetRand replaces the random source used for shuffling.
func (p *Playlist) SetRand(r Rand) {
	p.rnd = r
}

// Len returns the number of items.
func (p *Playlist) Len() int {
	return len(p.items)
}

// Shuffled reports whether Shuffle was invoked and not undone since.
func (p *Playlist) Shuffled() bool {
	return p.order != nil
}

// PoolStart returns the number of fixed playing slots.
func (p *Playlist) PoolStart() int {
	return p.poolStart
}

// Dirty reports whether the playlist changed since the last [Playlist.MarkClean].
func (p *Playlist) Dirty() bool {
	return p.dirty
}

// MarkDirty flags a change made outside the item operations (name, repeat).
func (p *Playlist) MarkDirty() {
	p.dirty = true
}

// MarkClean clears the dirty flag after a successful save.
func (p *Playlist) MarkClean() {
	p.dirty = false
}

// Slots returns the playing slot of every visual index. Unshuffled playlists play in visual order.
func (p *Playlist) Slots() []int {
	if p.order != nil {
		return slices.Clone(p.order)
	}
	slots := make([]int, len(p.items))
	for i := range slots {
		slots[i] = i
	}
	return slots
}

// All returns a copy of every object id in visual order.
func (p *Playlist) All() []string {
	return slices.Clone(p.items)
}

// ValidateObjectIDs rejects ids that cannot be stored.
func ValidateObjectIDs(ids []string) error {
	for _, id := range ids {
		if id == "" || strings.ContainsAny(id, "\r\n") {
			return protocol.Errorf(protocol.CodeInvalidObjectID, "invalid object id %q", id)
		}
	}
	return nil
}

// Insert places ids before visual index, which may equal Len to append.
//
// The new items take over the playing slot of the item previously at index (or the next unused slot when
// appending); later slots shift by the inserted count.
func (p *Playlist) Insert(index int, ids []string) (int, error) {
	if index < 0 || index > len(p.items) {
		return 0, protocol.ErrInvalidIndex
	}
	if err := ValidateObjectIDs(ids); err != nil {
		return 0, err
	}
	n := len(ids)
	if n == 0 {
		return 0, nil
	}

	if p.order != nil {
		slot := len(p.items)
		if index < len(p.items) {
			slot = p.order[index]
		}

		order := make([]int, len(p.items)+n)
		for v, s := range p.order {
			if s >= slot {
				s += n
			}
			if v >= index {
				order[v+n] = s
			} else {
				order[v] = s
			}
		}
		for i := range n {
			order[index+i] = slot + i
		}
		if slot < p.poolStart {
			p.poolStart += n
		}
		p.order = order
		p.rebuildInverse()
	}

	p.items = slices.Insert(p.items, index, ids...)
	p.dirty = true
	return n, nil
}

// Append adds ids at the end.
func (p *Playlist) Append(ids []string) (int, error) {
	return p.Insert(len(p.items), ids)
}

// Remove deletes the item at visual index.
func (p *Playlist) Remove(index int) bool {
	if index < 0 || index >= len(p.items) {
		return false
	}

	if p.order != nil {
		removed := p.order[index]
		order := make([]int, 0, len(p.order)-1)
		for v, s := range p.order {
			if v == index {
				continue
			}
			if s > removed {
				s--
			}
			order = append(order, s)
		}
		if removed < p.poolStart {
			p.poolStart--
		}
		p.order = order
		p.rebuildInverse()
	}

	p.items = slices.Delete(p.items, index, index+1)
	p.dirty = true
	return true
}

// Move relocates an item's visual position. Playing slots stay bound to visual positions.
func (p *Playlist) Move(from, to int) bool {
	if from < 0 || from >= len(p.items) || to < 0 || to >= len(p.items) || from == to {
		return false
	}

	item := p.items[from]
	p.items = slices.Delete(p.items, from, from+1)
	p.items = slices.Insert(p.items, to, item)
	p.dirty = true
	return true
}

// Clear removes every item. A shuffled playlist stays shuffled.
func (p *Playlist) Clear() int {
	n := len(p.items)
	if n == 0 {
		return 0
	}

	p.items = nil
	if p.order != nil {
		p.order = []int{}
		p.inverse = []int{}
	}
	p.poolStart = 0
	p.dirty = true
	return n
}

// Shuffle starts a new shuffle round: every slot returns to the pool.
func (p *Playlist) Shuffle() {
	if p.order == nil {
		p.order = make([]int, len(p.items))
		p.inverse = make([]int, len(p.items))
		for i := range p.order {
			p.order[i] = i
			p.inverse[i] = i
		}
	}
	p.poolStart = 0
	p.dirty = true
}

// Unshuffle reverts to visual playing order. It reports false if the playlist was not shuffled.
func (p *Playlist) Unshuffle() bool {
	if p.order == nil {
		return false
	}

	p.order = nil
	p.inverse = nil
	p.poolStart = 0
	p.dirty = true
	return true
}

// Item returns the object id at visual index, fixing its playing slot if still in the pool.
func (p *Playlist) Item(index int) (string, bool) {
	if index < 0 || index >= len(p.items) {
		return "", false
	}
	if p.order != nil {
		p.fix(index)
	}
	return p.items[index], true
}

// Items returns the inclusive range [first, last]. A negative or too large last means the end.
func (p *Playlist) Items(first, last int) ([]string, bool) {
	if first < 0 || first >= len(p.items) {
		return nil, false
	}
	if last < 0 || last >= len(p.items) {
		last = len(p.items) - 1
	}
	if last < first {
		return nil, false
	}
	return slices.Clone(p.items[first : last+1]), true
}

// Starting returns the first item in playing order.
func (p *Playlist) Starting() (int, string, bool) {
	if len(p.items) == 0 {
		return 0, "", false
	}
	if p.order == nil {
		return 0, p.items[0], true
	}

	if p.poolStart == 0 {
		p.shuffleElements(1)
	}
	v := p.inverse[0]
	return v, p.items[v], true
}

// Last returns the final item in playing order, resolving the whole pool.
func (p *Playlist) Last() (int, string, bool) {
	n := len(p.items)
	if n == 0 {
		return 0, "", false
	}
	if p.order == nil {
		return n - 1, p.items[n-1], true
	}

	p.shuffleElements(n - p.poolStart)
	v := p.inverse[n-1]
	return v, p.items[v], true
}

// Next returns the item played after visual index. At the end it wraps to the first slot when Repeat is set.
func (p *Playlist) Next(index int) (int, string, bool) {
	n := len(p.items)
	if index < 0 || index >= n {
		return 0, "", false
	}

	if p.order == nil {
		switch {
		case index+1 < n:
			return index + 1, p.items[index+1], true
		case p.Repeat:
			return 0, p.items[0], true
		default:
			return 0, "", false
		}
	}

	slot := p.fix(index) + 1
	switch {
	case slot < n:
		if slot >= p.poolStart {
			p.shuffleElements(1)
		}
	case p.Repeat:
		slot = 0
	default:
		return 0, "", false
	}

	v := p.inverse[slot]
	return v, p.items[v], true
}

// Prev returns the item played before visual index. At the start it wraps to the last slot when Repeat is set,
// which resolves the whole pool.
func (p *Playlist) Prev(index int) (int, string, bool) {
	n := len(p.items)
	if index < 0 || index >= n {
		return 0, "", false
	}

	if p.order == nil {
		switch {
		case index > 0:
			return index - 1, p.items[index-1], true
		case p.Repeat:
			return n - 1, p.items[n-1], true
		default:
			return 0, "", false
		}
	}

	slot := p.fix(index) - 1
	if slot < 0 {
		if !p.Repeat {
			return 0, "", false
		}
		p.shuffleElements(n - p.poolStart)
		slot = n - 1
	}

	v := p.inverse[slot]
	return v, p.items[v], true
}

// Check verifies the shuffle invariant.
func (p *Playlist) Check() error {
	if p.order == nil {
		if p.inverse != nil || p.poolStart != 0 {
			return fmt.Errorf("unshuffled playlist %d carries shuffle state", p.ID)
		}
		return nil
	}

	n := len(p.items)
	if len(p.order) != n || len(p.inverse) != n {
		return fmt.Errorf("playlist %d: %d items, %d order entries, %d inverse entries", p.ID, n, len(p.order), len(p.inverse))
	}
	if p.poolStart < 0 || p.poolStart > n {
		return fmt.Errorf("playlist %d: pool start %d out of [0,%d]", p.ID, p.poolStart, n)
	}
	for v, s := range p.order {
		if s < 0 || s >= n || p.inverse[s] != v {
			return fmt.Errorf("playlist %d: order[%d]=%d does not invert", p.ID, v, s)
		}
	}
	return nil
}

// shuffleElements fixes up to n more pool slots.
func (p *Playlist) shuffleElements(n int) {
	for ; n > 0 && p.poolStart < len(p.items); n-- {
		r := p.poolStart + p.rnd.IntN(len(p.items)-p.poolStart)
		p.swapSlots(p.poolStart, r)
		p.poolStart++
		p.dirty = true
	}
}

// fix moves visual index into the fixed prefix if it is still in the pool and returns its slot.
func (p *Playlist) fix(index int) int {
	if s := p.order[index]; s >= p.poolStart {
		p.swapSlots(p.poolStart, s)
		p.poolStart++
		p.dirty = true
	}
	return p.order[index]
}

func (p *Playlist) swapSlots(a, b int) {
	va, vb := p.inverse[a], p.inverse[b]
	p.inverse[a], p.inverse[b] = vb, va
	p.order[va], p.order[vb] = b, a
}

func (p *Playlist) rebuildInverse() {
	p.inverse = make([]int, len(p.order))
	for v, s := range p.order {
		p.inverse[s] = v
	}
}
