package domain

// ScanStrategy decides how much of a repository gets scanned and by which
// protocols. Derived purely from the size category so that two runs over the
// same tree always make the same choices.
type ScanStrategy struct {
	SampleRate float64  `json:"sample_rate"`
	Protocols  []string `json:"protocols"`
	Notes      []string `json:"notes,omitempty"`
}

// StrategyFor maps a size category to its scan strategy. Tiny and small
// repositories are scanned in full. Larger ones are sampled, and massive
// ones additionally drop the rot protocol, whose per-file history walk does
// not pay for itself at that scale.
func StrategyFor(size RepoSizeCategory, enabled []string) ScanStrategy {
	s := ScanStrategy{SampleRate: 1.0, Protocols: enabled}
	switch size {
	case SizeTiny, SizeSmall:
		// full scan
	case SizeMedium:
		s.SampleRate = 0.3
		s.Notes = append(s.Notes, "medium repository: sampling 30% of files")
	case SizeLarge:
		s.SampleRate = 0.1
		s.Notes = append(s.Notes, "large repository: sampling 10% of files")
	case SizeMassive:
		s.SampleRate = 0.05
		s.Notes = append(s.Notes, "massive repository: sampling 5% of files")
		var kept []string
		for _, p := range enabled {
			if p == ProtocolRot {
				s.Notes = append(s.Notes, "massive repository: rot protocol skipped")
				continue
			}
			kept = append(kept, p)
		}
		s.Protocols = kept
	}
	return s
}

// Enabled reports whether the strategy runs the given protocol.
func (s ScanStrategy) Enabled(protocol string) bool {
	for _, p := range s.Protocols {
		if p == protocol {
			return true
		}
	}
	return false
}
