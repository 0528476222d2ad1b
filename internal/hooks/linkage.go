package hooks

// LinkageURL is the linkage bit that makes a detector call its callback URL.
const LinkageURL uint32 = 1 << 9

// DetectorState is the part of a detector configuration the bridge manages.
type DetectorState struct {
	Enabled bool
	Linkage uint32
}

// MergeLinkage returns the state a detector must have for the bits in want to
// fire. Enabled detectors keep every existing bit; a disabled detector is
// enabled with exactly want. changed is false when nothing needs writing.
func MergeLinkage(current DetectorState, want uint32) (next DetectorState, changed bool) {
	if !current.Enabled {
		return DetectorState{Enabled: true, Linkage: want}, true
	}
	if current.Linkage&want == want {
		return current, false
	}
	return DetectorState{Enabled: true, Linkage: current.Linkage | want}, true
}
