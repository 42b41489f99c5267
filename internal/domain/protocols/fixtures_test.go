package protocols_test

import (
	"strings"

	"github.com/forensor/forensor/internal/domain"
)

// src builds a corpus file from literal content, counting lines the way the
// corpus collector does.
func src(path, lang, content string) domain.SourceFile {
	return domain.SourceFile{
		Path:     path,
		Language: lang,
		Content:  []byte(content),
		Lines:    strings.Count(content, "\n") + 1,
		Size:     int64(len(content)),
	}
}

func corpusOf(files ...domain.SourceFile) *domain.Corpus {
	return &domain.Corpus{Files: files}
}

func findingsByCategory(findings []domain.Finding, category string) []domain.Finding {
	var out []domain.Finding
	for _, f := range findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}
