package readme

// StaleReason says why a reference no longer holds.
type StaleReason string

const (
	ReasonChanged StaleReason = "changed"
	ReasonMissing StaleReason = "missing"
)

// StaleRef is a recorded reference whose node changed or disappeared.
type StaleRef struct {
	Ref
	Reason StaleReason
	// CurrentKey is empty when the node is gone.
	CurrentKey string
}

// LineState is the analysis of one mapped README line.
type LineState struct {
	Line
	Refs []Ref
	// Reused is true when Refs came from the previous mapping.
	Reused bool
	Stale  []StaleRef
}

// IsStale reports whether any reference of the line changed.
func (ls *LineState) IsStale() bool { return len(ls.Stale) > 0 }

// Analysis is the result of matching a README against a completed tree.
type Analysis struct {
	Lines  []Line
	Mapped []*LineState
	// Reused counts lines whose previous mapping entry was trusted.
	Reused int
	// Voided counts previous entries no current line matched, because the
	// line was edited or removed.
	Voided int
	// Recomputed counts lines mapped from scratch.
	Recomputed int

	index *Index
}

// Analyze maps each content line to the refs it depends on. Lines whose
// checksum appears in previous reuse those refs, preferring the entry recorded
// at the same line number; all other lines are matched against idx.
func Analyze(lines []Line, idx *Index, previous *Mapping) *Analysis {
	a := &Analysis{Lines: lines, index: idx}
	groups := previous.byChecksum()
	used := make(map[int]bool)

	for _, line := range lines {
		if !line.Content {
			continue
		}

		if entry, ok := pickEntry(groups[line.Checksum], line.Number, used); ok {
			used[entry.LineNumber] = true
			state := &LineState{Line: line, Refs: append([]Ref(nil), entry.CacheKeys...), Reused: true}
			a.checkStale(state)
			a.Mapped = append(a.Mapped, state)
			a.Reused++
			continue
		}

		refs := idx.Match(line.Text)
		if len(refs) == 0 {
			continue
		}
		a.Mapped = append(a.Mapped, &LineState{Line: line, Refs: refs})
		a.Recomputed++
	}
	if previous != nil {
		a.Voided = len(previous.Entries) - len(used)
	}
	return a
}

func pickEntry(entries []MappingEntry, lineNumber int, used map[int]bool) (MappingEntry, bool) {
	for _, entry := range entries {
		if entry.LineNumber == lineNumber && !used[entry.LineNumber] {
			return entry, true
		}
	}
	for _, entry := range entries {
		if !used[entry.LineNumber] {
			return entry, true
		}
	}
	return MappingEntry{}, false
}

func (a *Analysis) checkStale(state *LineState) {
	state.Stale = nil
	for _, ref := range state.Refs {
		node, ok := a.index.Node(ref.Path)
		if !ok {
			state.Stale = append(state.Stale, StaleRef{Ref: ref, Reason: ReasonMissing})
			continue
		}
		if current := node.Fingerprint.String(); current != ref.Key {
			state.Stale = append(state.Stale, StaleRef{Ref: ref, Reason: ReasonChanged, CurrentKey: current})
		}
	}
}

// StaleLines returns the mapped lines with at least one stale ref.
func (a *Analysis) StaleLines() []*LineState {
	var stale []*LineState
	for _, state := range a.Mapped {
		if state.IsStale() {
			stale = append(stale, state)
		}
	}
	return stale
}

// Refresh re-points a line at the current fingerprints of its refs and drops
// refs to nodes that no longer exist.
func (a *Analysis) Refresh(lineNumber int) {
	for _, state := range a.Mapped {
		if state.Number != lineNumber {
			continue
		}
		refs := state.Refs[:0]
		for _, ref := range state.Refs {
			if node, ok := a.index.Node(ref.Path); ok {
				refs = append(refs, Ref{Path: ref.Path, Key: node.Fingerprint.String()})
			}
		}
		state.Refs = refs
		state.Stale = nil
		return
	}
}

// Mapping converts the analysis into the persisted form. Stale lines keep
// their recorded keys so they stay stale until fixed or revalidated.
func (a *Analysis) Mapping() *Mapping {
	m := &Mapping{Version: MappingVersion, Entries: make([]MappingEntry, 0, len(a.Mapped))}
	for _, state := range a.Mapped {
		if len(state.Refs) == 0 {
			continue
		}
		m.Entries = append(m.Entries, MappingEntry{
			LineNumber:   state.Number,
			LineChecksum: state.Checksum,
			CacheKeys:    append([]Ref(nil), state.Refs...),
		})
	}
	return m
}
