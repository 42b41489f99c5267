package domain

import (
	"sort"
	"time"
)

// Protocol identifiers. Every ProtocolReport and Finding carries one of these.
const (
	ProtocolRot      = "rot"
	ProtocolGuilt    = "guilt"
	ProtocolExposure = "exposure"
	ProtocolCost     = "cost"
)

// AllProtocols lists the four scan protocols in their canonical order.
var AllProtocols = []string{ProtocolRot, ProtocolGuilt, ProtocolExposure, ProtocolCost}

// ReportStatus tells consumers whether a protocol actually ran.
type ReportStatus string

const (
	// StatusAnalyzed means the protocol ran over the full corpus.
	StatusAnalyzed ReportStatus = "ANALYZED"
	// StatusUnavailable means a required input was missing (e.g. no git
	// history for the rot protocol). Score is 0 and must be read as
	// "no signal", never as "clean".
	StatusUnavailable ReportStatus = "UNAVAILABLE"
)

// SourceFile is one file of the scan corpus. Path is slash-separated and
// relative to the scan root.
type SourceFile struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Content  []byte `json:"-"`
	Lines    int    `json:"lines"`
	Size     int64  `json:"size"`
}

// CommitEvent records one touch of a file in version history.
type CommitEvent struct {
	Path string    `json:"path"`
	Hash string    `json:"hash"`
	When time.Time `json:"when"`
}

// History is the per-file commit log produced by the history provider.
// Files absent from Events were never committed.
type History struct {
	Events  map[string][]CommitEvent `json:"events"`
	Commits int                      `json:"commits"`
	Head    string                   `json:"head"`
}

// Finding is a single piece of evidence produced by a protocol scanner.
// Severity is ordinal on a protocol-specific scale (1 lowest). Evidence is
// truncated at construction time and, for secret findings, always masked.
type Finding struct {
	Protocol string `json:"protocol"`
	Category string `json:"category"`
	Severity int    `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"`
	Evidence string `json:"evidence,omitempty"`
}

// ProtocolReport is the complete output of one protocol scanner.
type ProtocolReport struct {
	Protocol string         `json:"protocol"`
	Status   ReportStatus   `json:"status"`
	Findings []Finding      `json:"findings"`
	Score    float64        `json:"score"`
	Notes    []string       `json:"notes,omitempty"`
	Units    []UnitCost     `json:"units,omitempty"`
	Metrics  map[string]any `json:"metrics,omitempty"`
}

// UnitCost is the per-function record emitted by the cost protocol.
type UnitCost struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Complexity int    `json:"complexity"`
	Grade      string `json:"grade"`
	BigO       string `json:"big_o,omitempty"`
}

// NewReport returns an empty ANALYZED report for the given protocol.
func NewReport(protocol string) *ProtocolReport {
	return &ProtocolReport{
		Protocol: protocol,
		Status:   StatusAnalyzed,
		Findings: []Finding{},
	}
}

// Unavailable returns an UNAVAILABLE report carrying the reason as a note.
func Unavailable(protocol, reason string) *ProtocolReport {
	return &ProtocolReport{
		Protocol: protocol,
		Status:   StatusUnavailable,
		Findings: []Finding{},
		Notes:    []string{reason},
	}
}

// SortFindings puts findings into the canonical (file, line, category) order
// so identical inputs always serialize identically.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Category < b.Category
	})
}

// RepoSizeCategory buckets a corpus by file count. It drives corpus sampling
// and the validation gate's adaptive threshold.
type RepoSizeCategory string

const (
	SizeTiny    RepoSizeCategory = "tiny"
	SizeSmall   RepoSizeCategory = "small"
	SizeMedium  RepoSizeCategory = "medium"
	SizeLarge   RepoSizeCategory = "large"
	SizeMassive RepoSizeCategory = "massive"
)

// SizeCategoryFor is a pure function of the corpus file count.
func SizeCategoryFor(fileCount int) RepoSizeCategory {
	switch {
	case fileCount < 100:
		return SizeTiny
	case fileCount < 1000:
		return SizeSmall
	case fileCount < 10000:
		return SizeMedium
	case fileCount < 100000:
		return SizeLarge
	default:
		return SizeMassive
	}
}

// ScanBundle is everything one scan produced: the four protocol reports plus
// corpus metadata. Fingerprint is a content-independent hash of the sorted
// path list, used as the similarity key for scan records. Notes carry
// scan-level diagnostics (skipped files, sampling) that belong to no single
// protocol.
type ScanBundle struct {
	ID           string                     `json:"id"`
	Root         string                     `json:"root"`
	Fingerprint  string                     `json:"fingerprint"`
	SizeCategory RepoSizeCategory           `json:"size_category"`
	FileCount    int                        `json:"file_count"`
	TotalLines   int                        `json:"total_lines"`
	Reports      map[string]*ProtocolReport `json:"reports"`
	Notes        []string                   `json:"notes,omitempty"`
	StartedAt    time.Time                  `json:"started_at"`
	FinishedAt   time.Time                  `json:"finished_at"`
}

// Report returns the named protocol report, or an UNAVAILABLE placeholder if
// the protocol did not run.
func (b *ScanBundle) Report(protocol string) *ProtocolReport {
	if r, ok := b.Reports[protocol]; ok && r != nil {
		return r
	}
	return Unavailable(protocol, "protocol did not run")
}

// TotalFindings counts findings across all reports.
func (b *ScanBundle) TotalFindings() int {
	n := 0
	for _, r := range b.Reports {
		n += len(r.Findings)
	}
	return n
}

// InterpretedAnalysis is the narrative an external interpreter produced from
// a scan bundle. The gate validates it; this package never generates it.
type InterpretedAnalysis struct {
	Summary         string           `json:"summary"`
	Claims          []Claim          `json:"claims"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Claim is one assertion about the scanned tree.
type Claim struct {
	Text     string   `json:"text"`
	Protocol string   `json:"protocol,omitempty"`
	Category string   `json:"category,omitempty"`
	Severity int      `json:"severity,omitempty"`
	Files    []string `json:"files,omitempty"`
}

// Recommendation is one suggested action, tied to the files it concerns.
type Recommendation struct {
	Text  string   `json:"text"`
	Files []string `json:"files,omitempty"`
}
