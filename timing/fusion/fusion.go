// Package fusion matches contiguous subsequences of a decode batch
// against registered groups and marks the first match FUSED, its
// successors FUSION_GHOST.
package fusion

import "github.com/sarchlab/rvooo/insts"

// MaxIterations bounds a single batch's fuse-matching loop, guarding
// against a pathological table causing an unbounded scan.
const MaxIterations = 64

// Group is a registered fusable mnemonic sequence, e.g. {"auipc", "addi"}
// for an address-formation idiom.
type Group struct {
	Mnemonics []string
}

// jenkinsOneAtATime hashes a sequence of mnemonics. Grounded on the
// classic Jenkins one-at-a-time mixing function.
func jenkinsOneAtATime(mnemonics []string) uint32 {
	var hash uint32
	for _, m := range mnemonics {
		for _, c := range []byte(m) {
			hash += uint32(c)
			hash += hash << 10
			hash ^= hash >> 6
		}
		hash += '\x00'
		hash += hash << 10
		hash ^= hash >> 6
	}
	hash += hash << 3
	hash ^= hash >> 11
	hash += hash << 15
	return hash
}

// Table indexes registered groups by the Jenkins hash of their mnemonic
// sequence.
type Table struct {
	byHash map[uint32][]Group
	maxLen int
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{byHash: make(map[uint32][]Group)}
}

// Register adds g to the table.
func (t *Table) Register(g Group) {
	h := jenkinsOneAtATime(g.Mnemonics)
	t.byHash[h] = append(t.byHash[h], g)
	if len(g.Mnemonics) > t.maxLen {
		t.maxLen = len(g.Mnemonics)
	}
}

// Apply scans batch for matches against registered groups, marking the
// first instruction of each match StatusFused and its successors
// StatusFusionGhost, in place. It iterates until no window in the batch
// produces a new match or MaxIterations is reached, and returns the
// number of fusions applied.
func (t *Table) Apply(batch []*insts.InstRecord) int {
	if t.maxLen == 0 {
		return 0
	}
	fused := 0
	for iter := 0; iter < MaxIterations; iter++ {
		matchedAny := false
		for size := t.maxLen; size >= 2; size-- {
			for start := 0; start+size <= len(batch); start++ {
				window := batch[start : start+size]
				if alreadyMarked(window) {
					continue
				}
				if t.matches(window) {
					window[0].Status = insts.StatusFused
					for _, ghost := range window[1:] {
						ghost.Status = insts.StatusFusionGhost
					}
					fused++
					matchedAny = true
				}
			}
		}
		if !matchedAny {
			break
		}
	}
	return fused
}

func alreadyMarked(window []*insts.InstRecord) bool {
	for _, r := range window {
		if r.Status == insts.StatusFused || r.Status == insts.StatusFusionGhost {
			return true
		}
	}
	return false
}

func (t *Table) matches(window []*insts.InstRecord) bool {
	mnemonics := make([]string, len(window))
	for i, r := range window {
		mnemonics[i] = r.Mnemonic
	}
	h := jenkinsOneAtATime(mnemonics)
	for _, g := range t.byHash[h] {
		if sameMnemonics(g.Mnemonics, mnemonics) {
			return true
		}
	}
	return false
}

func sameMnemonics(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
