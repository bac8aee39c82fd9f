package display

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/standardbeagle/codegraph/internal/extract"
	"github.com/standardbeagle/codegraph/internal/indexing"
	"github.com/standardbeagle/codegraph/internal/resolve"
)

// ReportFormatter renders extraction and resolution reports
type ReportFormatter struct {
	options FormatterOptions
}

// NewReportFormatter creates a report formatter. Only Format is used.
func NewReportFormatter(options FormatterOptions) *ReportFormatter {
	return &ReportFormatter{options: options}
}

// FormatRun formats a pipeline run
func (rf *ReportFormatter) FormatRun(r *indexing.RunReport) string {
	if r == nil {
		return "No run data available"
	}
	switch rf.options.Format {
	case FormatJSON:
		return marshal(r)
	case FormatCompact:
		return fmt.Sprintf("files=%d %s %s duration=%s",
			r.Scan.Files, compactExtract(r.Extract), compactResolve(r.Resolve), roundDuration(r.Duration))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Indexed repository %s in %s\n", r.RepositoryID, roundDuration(r.Duration)))
	sb.WriteString(fmt.Sprintf("Scanned %d files (%d bytes); skipped %d excluded, %d unsupported, %d too large, %d binary\n",
		r.Scan.Files, r.Scan.Bytes, r.Scan.Excluded, r.Scan.Unsupported, r.Scan.TooLarge, r.Scan.Binary))
	sb.WriteString("\n")
	rf.writeExtract(&sb, r.Extract)
	for _, f := range r.Failures {
		sb.WriteString(fmt.Sprintf("  failed: %s: %s\n", f.Path, f.Error))
	}
	if r.Resolve != nil {
		sb.WriteString("\n")
		rf.writeResolve(&sb, r.Resolve)
	}
	return sb.String()
}

// FormatExtract formats an extraction summary
func (rf *ReportFormatter) FormatExtract(s extract.Summary) string {
	switch rf.options.Format {
	case FormatJSON:
		return marshal(s)
	case FormatCompact:
		return compactExtract(s)
	}
	var sb strings.Builder
	rf.writeExtract(&sb, s)
	return sb.String()
}

// FormatResolve formats a resolution report
func (rf *ReportFormatter) FormatResolve(r *resolve.Report) string {
	if r == nil {
		return "No resolution data available"
	}
	switch rf.options.Format {
	case FormatJSON:
		return marshal(r)
	case FormatCompact:
		return compactResolve(r)
	}
	var sb strings.Builder
	rf.writeResolve(&sb, r)
	return sb.String()
}

func (rf *ReportFormatter) writeExtract(sb *strings.Builder, s extract.Summary) {
	sb.WriteString(fmt.Sprintf("Extraction: %d files, %d entities, %d references\n", s.Files, s.Entities, s.References))
	if s.Failed+s.Partial+s.Skipped+s.Overridden+s.Duplicates > 0 {
		sb.WriteString(fmt.Sprintf("  %d failed, %d partial, %d candidates skipped, %d overridden, %d duplicates\n",
			s.Failed, s.Partial, s.Skipped, s.Overridden, s.Duplicates))
	}
}

func (rf *ReportFormatter) writeResolve(sb *strings.Builder, r *resolve.Report) {
	sb.WriteString(fmt.Sprintf("Resolution: %d entities, %d external stubs, %s\n", r.Entities, r.Externals, roundDuration(r.Duration)))
	sb.WriteString(fmt.Sprintf("  %-11s %8s %8s %8s %8s %8s %8s %8s %8s\n",
		"kind", "refs", "resolved", "external", "ambig", "mismatch", "skipped", "orphaned", "edges"))
	rows := append(append([]resolve.KindReport(nil), r.Kinds...), r.Totals)
	for _, kr := range rows {
		sb.WriteString(fmt.Sprintf("  %-11s %8d %8d %8d %8d %8d %8d %8d %8d\n",
			kr.Kind, kr.References, kr.Resolved, kr.External, kr.Ambiguous, kr.Mismatched, kr.Skipped, kr.Orphaned, kr.Edges))
		if kr.Error != "" {
			sb.WriteString(fmt.Sprintf("  %-11s error: %s\n", "", kr.Error))
		}
	}
	if len(r.Totals.ByStrategy) > 0 {
		sb.WriteString("  by strategy: " + strategies(r.Totals.ByStrategy) + "\n")
	}
}

func strategies(by map[resolve.Strategy]int) string {
	keys := make([]string, 0, len(by))
	for s := range by {
		keys = append(keys, string(s))
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, by[resolve.Strategy(k)])
	}
	return strings.Join(parts, " ")
}

func compactExtract(s extract.Summary) string {
	return fmt.Sprintf("entities=%d references=%d failed=%d", s.Entities, s.References, s.Failed)
}

func compactResolve(r *resolve.Report) string {
	if r == nil {
		return "edges=0"
	}
	out := fmt.Sprintf("edges=%d resolved=%d external=%d ambiguous=%d externals=%d",
		r.Totals.Edges, r.Totals.Resolved, r.Totals.External, r.Totals.Ambiguous, r.Externals)
	if failed := r.Failed(); len(failed) > 0 {
		names := make([]string, len(failed))
		for i, k := range failed {
			names[i] = string(k)
		}
		out += " failed=" + strings.Join(names, ",")
	}
	return out
}

func roundDuration(d time.Duration) time.Duration {
	if d > time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(time.Microsecond)
}
