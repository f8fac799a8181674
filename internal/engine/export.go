package engine

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"hireline/internal/export"
	"hireline/internal/observability"
	"hireline/internal/repo"
)

// ExportPool writes the filtered talent pool to an xlsx workbook at path
// and returns the final path and the number of exported records.
func (e Engine) ExportPool(ctx context.Context, f repo.PoolFilter, path string) (out string, n int, err error) {
	ctx, span := observability.StartSpan(ctx, "pool.export", attribute.String("path", path))
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(path) == "" {
		return "", 0, &ValidationError{Field: "path", Reason: "is required"}
	}
	records, err := e.ListPooledCandidates(ctx, f)
	if err != nil {
		return "", 0, err
	}
	summary, err := e.PoolSummary(ctx)
	if err != nil {
		return "", 0, err
	}
	out, err = export.Save(path, export.Report{
		Records:     records,
		Summary:     summary,
		Filter:      describeFilter(f),
		GeneratedAt: e.now(),
	})
	if err != nil {
		return "", 0, fmt.Errorf("export pool: %w", err)
	}
	return out, len(records), nil
}

func describeFilter(f repo.PoolFilter) string {
	var parts []string
	if f.Disposition != "" {
		parts = append(parts, "disposition="+string(f.Disposition))
	}
	if f.JobOrderID != "" {
		parts = append(parts, "job_order="+f.JobOrderID)
	}
	if f.CandidateID != "" {
		parts = append(parts, "candidate="+f.CandidateID)
	}
	return strings.Join(parts, " ")
}
