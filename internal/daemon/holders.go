package daemon

// holders tracks which bus peer raised which use count.
type holders struct {
	bySender map[string]map[uint32]int
}

func newHolders() *holders {
	return &holders{bySender: make(map[string]map[uint32]int)}
}

func (h *holders) add(sender string, id uint32) {
	if sender == "" {
		return
	}
	counts, ok := h.bySender[sender]
	if !ok {
		counts = make(map[uint32]int)
		h.bySender[sender] = counts
	}
	counts[id]++
}

// remove forgets one increment of id held by sender, if it holds any.
func (h *holders) remove(sender string, id uint32) {
	counts, ok := h.bySender[sender]
	if !ok || counts[id] == 0 {
		return
	}
	if counts[id]--; counts[id] == 0 {
		delete(counts, id)
	}
	if len(counts) == 0 {
		delete(h.bySender, sender)
	}
}

// forget drops every record of id.
func (h *holders) forget(id uint32) {
	for sender, counts := range h.bySender {
		delete(counts, id)
		if len(counts) == 0 {
			delete(h.bySender, sender)
		}
	}
}

// release removes sender and returns the counts it held.
func (h *holders) release(sender string) map[uint32]int {
	counts := h.bySender[sender]
	delete(h.bySender, sender)
	return counts
}

func (h *holders) len() int {
	return len(h.bySender)
}
