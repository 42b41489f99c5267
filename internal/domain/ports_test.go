package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forensor/forensor/internal/domain"
)

func TestLearningAggregate_PassRate(t *testing.T) {
	assert.Equal(t, -1.0, domain.LearningAggregate{}.PassRate())
	assert.Equal(t, 0.0, domain.LearningAggregate{TotalRuns: 4}.PassRate())
	assert.Equal(t, 0.5, domain.LearningAggregate{TotalRuns: 4, PassedRuns: 2}.PassRate())
	assert.Equal(t, 1.0, domain.LearningAggregate{TotalRuns: 3, PassedRuns: 3}.PassRate())
}

func TestCorpusTotalLines(t *testing.T) {
	c := &domain.Corpus{
		Files: []domain.SourceFile{
			{Path: "a.py", Lines: 10},
			{Path: "b.py", Lines: 32},
		},
	}
	assert.Equal(t, 42, c.TotalLines())

	empty := &domain.Corpus{}
	assert.Zero(t, empty.TotalLines())
}
