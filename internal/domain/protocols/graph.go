package protocols

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/camelcase"

	"github.com/forensor/forensor/internal/domain"
)

// ReferenceGraph holds file-level reference edges extracted from import
// statements. Matching is name and path based only; no semantic resolution.
type ReferenceGraph struct {
	Imports    map[string][]string // file -> files it references
	ImportedBy map[string][]string // file -> files that reference it
	Notes      []string
}

var (
	rePyFrom     = regexp.MustCompile(`^from\s+([\w.]+)\s+import`)
	rePyImport   = regexp.MustCompile(`^import\s+([\w.]+)`)
	reJSFrom     = regexp.MustCompile(`import\s+.*?from\s+['"]([^'"]+)['"]`)
	reJSRequire  = regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	reGoSingle   = regexp.MustCompile(`^import\s+(?:\w+\s+)?"([^"]+)"`)
	reGoInBlock  = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`)
	reGoBlockTop = regexp.MustCompile(`^import\s*\(`)
)

// maxRefLine guards against minified bundles that defeat line scanning.
const maxRefLine = 10000

// BuildReferenceGraph extracts import edges for every corpus file. Files
// whose import lines cannot be processed contribute no edges and leave a
// diagnostic note; the graph is always returned.
func BuildReferenceGraph(files []domain.SourceFile) *ReferenceGraph {
	g := &ReferenceGraph{
		Imports:    make(map[string][]string, len(files)),
		ImportedBy: make(map[string][]string),
	}

	idx := newFileIndex(files)

	for _, f := range files {
		refs, note := extractRefs(f, idx)
		if note != "" {
			g.Notes = append(g.Notes, note)
			continue
		}
		if len(refs) > 0 {
			g.Imports[f.Path] = refs
		}
	}

	// Invert edges in sorted order so ImportedBy lists are deterministic.
	importers := make([]string, 0, len(g.Imports))
	for from := range g.Imports {
		importers = append(importers, from)
	}
	sort.Strings(importers)
	for _, from := range importers {
		for _, to := range g.Imports[from] {
			g.ImportedBy[to] = append(g.ImportedBy[to], from)
		}
	}

	return g
}

type fileIndex struct {
	byPath map[string]bool
	byBase map[string][]string // basename (no ext) -> paths
	goDirs map[string][]string // directory -> go files
}

func newFileIndex(files []domain.SourceFile) *fileIndex {
	idx := &fileIndex{
		byPath: make(map[string]bool, len(files)),
		byBase: make(map[string][]string),
		goDirs: make(map[string][]string),
	}
	for _, f := range files {
		idx.byPath[f.Path] = true
		base := strings.TrimSuffix(path.Base(f.Path), path.Ext(f.Path))
		idx.byBase[base] = append(idx.byBase[base], f.Path)
		if f.Language == "go" {
			dir := path.Dir(f.Path)
			idx.goDirs[dir] = append(idx.goDirs[dir], f.Path)
		}
	}
	return idx
}

func extractRefs(f domain.SourceFile, idx *fileIndex) (refs []string, note string) {
	seen := make(map[string]bool)
	add := func(targets []string) {
		for _, t := range targets {
			if t != f.Path && !seen[t] {
				seen[t] = true
				refs = append(refs, t)
			}
		}
	}

	lines := splitLines(f.Content)
	for _, line := range lines {
		if len(line) > maxRefLine {
			return nil, fmt.Sprintf("%s: line too long for import extraction, edges skipped", f.Path)
		}
	}

	switch f.Language {
	case "python":
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if m := rePyFrom.FindStringSubmatch(trimmed); m != nil {
				add(idx.resolvePython(m[1]))
			} else if m := rePyImport.FindStringSubmatch(trimmed); m != nil {
				add(idx.resolvePython(m[1]))
			}
		}
	case "javascript", "typescript":
		for _, line := range lines {
			for _, m := range reJSFrom.FindAllStringSubmatch(line, -1) {
				add(idx.resolveJS(f.Path, m[1]))
			}
			for _, m := range reJSRequire.FindAllStringSubmatch(line, -1) {
				add(idx.resolveJS(f.Path, m[1]))
			}
		}
	case "go":
		inBlock := false
		for _, line := range lines {
			switch {
			case reGoBlockTop.MatchString(line):
				inBlock = true
			case inBlock && strings.HasPrefix(strings.TrimSpace(line), ")"):
				inBlock = false
			case inBlock:
				if m := reGoInBlock.FindStringSubmatch(line); m != nil {
					add(idx.resolveGo(m[1]))
				}
			default:
				if m := reGoSingle.FindStringSubmatch(line); m != nil {
					add(idx.resolveGo(m[1]))
				}
			}
		}
	}

	sort.Strings(refs)
	return refs, ""
}

// resolvePython maps a dotted module to corpus files: exact path first, then
// package __init__, then basename as a fallback.
func (idx *fileIndex) resolvePython(module string) []string {
	norm := strings.ReplaceAll(module, ".", "/")
	for _, candidate := range []string{norm + ".py", norm + "/__init__.py"} {
		if hits := idx.matchSuffix(candidate); len(hits) > 0 {
			return hits
		}
	}
	parts := strings.Split(module, ".")
	tail := parts[len(parts)-1]
	return append([]string(nil), idx.byBase[tail]...)
}

// resolveJS resolves a module specifier relative to the importing file.
// Non-relative specifiers are external packages and resolve by name only.
func (idx *fileIndex) resolveJS(from, spec string) []string {
	exts := []string{".js", ".ts", ".jsx", ".tsx"}

	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		base := path.Clean(path.Join(path.Dir(from), spec))
		for _, ext := range exts {
			if idx.byPath[base+ext] {
				return []string{base + ext}
			}
		}
		for _, ext := range exts {
			if idx.byPath[base+"/index"+ext] {
				return []string{base + "/index" + ext}
			}
		}
		// CamelCase specifier vs snake_case file on disk (and the reverse).
		dir, last := path.Dir(base), path.Base(base)
		for _, alt := range nameCandidates(last) {
			for _, ext := range exts {
				if p := path.Join(dir, alt) + ext; idx.byPath[p] {
					return []string{p}
				}
			}
		}
		return nil
	}

	last := path.Base(spec)
	var hits []string
	for _, alt := range append([]string{last}, nameCandidates(last)...) {
		hits = append(hits, idx.byBase[alt]...)
	}
	sort.Strings(hits)
	return dedupeStrings(hits)
}

// resolveGo matches an import path against corpus directories by suffix.
func (idx *fileIndex) resolveGo(importPath string) []string {
	var hits []string
	for dir, files := range idx.goDirs {
		if dir == "." {
			continue
		}
		if importPath == dir || strings.HasSuffix(importPath, "/"+dir) {
			hits = append(hits, files...)
		}
	}
	sort.Strings(hits)
	return hits
}

func (idx *fileIndex) matchSuffix(candidate string) []string {
	if idx.byPath[candidate] {
		return []string{candidate}
	}
	var hits []string
	for p := range idx.byPath {
		if strings.HasSuffix(p, "/"+candidate) {
			hits = append(hits, p)
		}
	}
	sort.Strings(hits)
	return hits
}

// nameCandidates derives snake_case and kebab-case spellings from a
// camelCase identifier so UserService can find user_service.ts.
func nameCandidates(name string) []string {
	words := camelcase.Split(name)
	if len(words) < 2 {
		return nil
	}
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}
	return []string{strings.Join(lower, "_"), strings.Join(lower, "-")}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
