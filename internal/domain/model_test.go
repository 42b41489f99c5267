package domain_test

import (
	"testing"

	"github.com/forensor/forensor/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSizeCategoryFor(t *testing.T) {
	tests := []struct {
		files int
		want  domain.RepoSizeCategory
	}{
		{0, domain.SizeTiny},
		{99, domain.SizeTiny},
		{100, domain.SizeSmall},
		{999, domain.SizeSmall},
		{1000, domain.SizeMedium},
		{9999, domain.SizeMedium},
		{10000, domain.SizeLarge},
		{99999, domain.SizeLarge},
		{100000, domain.SizeMassive},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.SizeCategoryFor(tt.files), "%d files", tt.files)
	}
}

func TestSortFindings_CanonicalOrder(t *testing.T) {
	findings := []domain.Finding{
		{File: "b.py", Line: 1, Category: "TODO"},
		{File: "a.py", Line: 9, Category: "HACK"},
		{File: "a.py", Line: 2, Category: "TODO"},
		{File: "a.py", Line: 2, Category: "FIXME"},
	}

	domain.SortFindings(findings)

	want := []domain.Finding{
		{File: "a.py", Line: 2, Category: "FIXME"},
		{File: "a.py", Line: 2, Category: "TODO"},
		{File: "a.py", Line: 9, Category: "HACK"},
		{File: "b.py", Line: 1, Category: "TODO"},
	}
	assert.Equal(t, want, findings)
}

func TestBundleReport_FallsBackToUnavailable(t *testing.T) {
	bundle := &domain.ScanBundle{
		Reports: map[string]*domain.ProtocolReport{
			domain.ProtocolGuilt: domain.NewReport(domain.ProtocolGuilt),
		},
	}

	assert.Equal(t, domain.StatusAnalyzed, bundle.Report(domain.ProtocolGuilt).Status)

	missing := bundle.Report(domain.ProtocolRot)
	assert.Equal(t, domain.StatusUnavailable, missing.Status)
	assert.NotEmpty(t, missing.Notes)
}

func TestBundleTotalFindings(t *testing.T) {
	guilt := domain.NewReport(domain.ProtocolGuilt)
	guilt.Findings = append(guilt.Findings,
		domain.Finding{Category: "TODO"},
		domain.Finding{Category: "HACK"},
	)
	exposure := domain.NewReport(domain.ProtocolExposure)
	exposure.Findings = append(exposure.Findings, domain.Finding{Category: "GENERIC_PASSWORD"})

	bundle := &domain.ScanBundle{
		Reports: map[string]*domain.ProtocolReport{
			domain.ProtocolGuilt:    guilt,
			domain.ProtocolExposure: exposure,
		},
	}

	assert.Equal(t, 3, bundle.TotalFindings())
}

func TestUnavailable_CarriesReason(t *testing.T) {
	r := domain.Unavailable(domain.ProtocolRot, "no git history")
	assert.Equal(t, domain.StatusUnavailable, r.Status)
	assert.Equal(t, []string{"no git history"}, r.Notes)
	assert.Zero(t, r.Score)
	assert.Empty(t, r.Findings)
}
