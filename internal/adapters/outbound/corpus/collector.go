package corpus

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/forensor/forensor/internal/domain"
)

var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"bin":          true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"target":       true,
	".idea":        true,
	".vscode":      true,
}

var languageByExt = map[string]string{
	".py":     "python",
	".js":     "javascript",
	".jsx":    "javascript",
	".ts":     "typescript",
	".tsx":    "typescript",
	".go":     "go",
	".java":   "java",
	".rs":     "rust",
	".rb":     "ruby",
	".php":    "php",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".hpp":    "cpp",
	".cs":     "csharp",
	".swift":  "swift",
	".kt":     "kotlin",
	".scala":  "scala",
	".vue":    "vue",
	".svelte": "svelte",
	".sh":     "shell",
}

const (
	binarySniffBytes = 8 * 1024
	maxAvgLineLen    = 400
)

// Collector implements domain.CorpusProvider by walking the filesystem.
// Every skip that loses information leaves a note; only ignore globs and
// unknown extensions drop files silently.
type Collector struct{}

func New() *Collector {
	return &Collector{}
}

// Count sizes the tree without reading any file contents. The count feeds
// the size category, so it must see the full tree, not a sampled subset.
func (c *Collector) Count(root string, cfg domain.AuditConfig) (int, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return 0, err
	}

	count := 0
	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			if path != absRoot && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ignored(rel, cfg.Ignore) {
			return nil
		}
		if _, ok := languageByExt[strings.ToLower(filepath.Ext(rel))]; !ok {
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting files in %s: %w", root, err)
	}
	return count, nil
}

func (c *Collector) Collect(root string, cfg domain.AuditConfig, sampleRate float64) (*domain.Corpus, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	corpus := &domain.Corpus{}

	type candidate struct {
		rel  string
		abs  string
		size int64
	}
	var candidates []candidate

	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			corpus.Notes = append(corpus.Notes, fmt.Sprintf("%s: %v", path, walkErr))
			return nil
		}

		if d.IsDir() {
			if path != absRoot && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if ignored(rel, cfg.Ignore) {
			return nil
		}
		if _, ok := languageByExt[strings.ToLower(filepath.Ext(rel))]; !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			corpus.Notes = append(corpus.Notes, fmt.Sprintf("%s: %v", rel, err))
			corpus.Skipped++
			return nil
		}
		if info.Size() > cfg.MaxFileBytes {
			corpus.Notes = append(corpus.Notes,
				fmt.Sprintf("%s: skipped (%d bytes exceeds %d byte cap)", rel, info.Size(), cfg.MaxFileBytes))
			corpus.Skipped++
			return nil
		}

		candidates = append(candidates, candidate{rel: rel, abs: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].rel < candidates[j].rel })

	// Sampling keeps every k-th file of the sorted list, so two runs over
	// the same tree always pick the same subset.
	if sampleRate > 0 && sampleRate < 1 {
		k := int(math.Round(1 / sampleRate))
		if k > 1 {
			kept := candidates[:0]
			for i, cand := range candidates {
				if i%k == 0 {
					kept = append(kept, cand)
				}
			}
			skipped := len(candidates) - len(kept)
			candidates = kept
			corpus.Skipped += skipped
			corpus.Notes = append(corpus.Notes,
				fmt.Sprintf("sampling: kept %d of %d files (rate %.2f)", len(candidates), len(candidates)+skipped, sampleRate))
		}
	}

	for _, cand := range candidates {
		data, err := os.ReadFile(cand.abs)
		if err != nil {
			corpus.Notes = append(corpus.Notes, fmt.Sprintf("%s: read failed: %v", cand.rel, err))
			corpus.Skipped++
			continue
		}

		lines := bytes.Count(data, []byte("\n")) + 1
		if looksBinary(data) {
			corpus.Notes = append(corpus.Notes, fmt.Sprintf("%s: skipped (binary content)", cand.rel))
			corpus.Skipped++
			continue
		}
		if avg := avgLineLen(data, lines); avg > maxAvgLineLen {
			corpus.Notes = append(corpus.Notes,
				fmt.Sprintf("%s: skipped (minified, average line length %d)", cand.rel, avg))
			corpus.Skipped++
			continue
		}

		corpus.Files = append(corpus.Files, domain.SourceFile{
			Path:     cand.rel,
			Language: languageByExt[strings.ToLower(filepath.Ext(cand.rel))],
			Content:  data,
			Lines:    lines,
			Size:     cand.size,
		})
	}

	return corpus, nil
}

// ignored matches globs against the relative path and the basename, so
// "*.min.js" catches files anywhere in the tree.
func ignored(rel string, globs []string) bool {
	base := filepath.Base(rel)
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}
	return false
}

func looksBinary(data []byte) bool {
	head := data
	if len(head) > binarySniffBytes {
		head = head[:binarySniffBytes]
	}
	return bytes.IndexByte(head, 0) >= 0
}

func avgLineLen(data []byte, lines int) int {
	if len(data) == 0 || lines == 0 {
		return 0
	}
	return len(data) / lines
}
