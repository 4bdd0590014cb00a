// Package observability provides logger construction and formatted output of pipeline
// events for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer writes human-readable pipeline events
type Printer struct {
	out     io.Writer
	verbose bool
}

// NewPrinter creates a new Printer that writes to the given writer. In verbose mode each
// lead is printed as a box with its contacts and draft.
func NewPrinter(out io.Writer, verbose bool) *Printer {
	return &Printer{out: out, verbose: verbose}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintEvent writes one line (or box) for ev.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvent(ev pipeline.Event) {
	switch e := ev.(type) {
	case pipeline.Status:
		fmt.Fprintf(p.out, "[%3d%%] %s\n", e.Progress, e.Message)
	case pipeline.LeadEvent:
		if p.verbose {
			p.PrintLead(&e.Lead)
			return
		}
		fmt.Fprintf(p.out, "[%3d%%] ✓ %s (score %d, %d contacts)\n",
			e.Progress, leadName(&e.Lead), e.Lead.Score, len(e.Lead.Contacts))
	case pipeline.QuotaExceeded:
		fmt.Fprintf(p.out, "[%3d%%] ⚠ %s\n", e.Progress, e.Message)
	case pipeline.Error:
		prefix := "✗"
		if e.Fatal {
			prefix = "✗ fatal:"
		}
		if e.Company != "" {
			fmt.Fprintf(p.out, "[%3d%%] %s %s: %s\n", e.Progress, prefix, e.Company, e.Message)
			return
		}
		fmt.Fprintf(p.out, "[%3d%%] %s %s\n", e.Progress, prefix, e.Message)
	case pipeline.Complete:
		p.PrintSummary(e)
	}
}

// PrintLead outputs a lead with its primary contacts and drafted subject.
func (p *Printer) PrintLead(lead *types.Lead) {
	if lead == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Company:  %s\n", leadName(lead))
	fmt.Fprintf(&sb, "Role:     %s\n", lead.Job.Title)
	if lead.Company.Industry != "" {
		fmt.Fprintf(&sb, "Industry: %s\n", lead.Company.Industry)
	}
	fmt.Fprintf(&sb, "Score:    %d\n", lead.Score)

	if len(lead.Contacts) > 0 {
		sb.WriteString("\nContacts:\n")
		count := min(len(lead.Contacts), maxItemsToShow)
		for i := 0; i < count; i++ {
			c := lead.Contacts[i]
			email := "(email withheld)"
			if c.HasEmail() {
				email = *c.Email
			}
			fmt.Fprintf(&sb, "  • %s, %s\n", c.Name, email)
		}
		if len(lead.Contacts) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(lead.Contacts)-maxItemsToShow)
		}
	}

	if lead.Draft.Subject != "" {
		fmt.Fprintf(&sb, "\nSubject:  %s\n", lead.Draft.Subject)
	}

	p.printBox("LEAD", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSummary outputs the end-of-run summary.
func (p *Printer) PrintSummary(c pipeline.Complete) {
	s := c.Summary

	var sb strings.Builder
	if c.Message != "" {
		sb.WriteString(c.Message + "\n\n")
	}
	fmt.Fprintf(&sb, "Leads generated:  %d\n", s.TotalGenerated)
	fmt.Fprintf(&sb, "Contacts found:   %d\n", s.TotalContacts)
	fmt.Fprintf(&sb, "Average score:    %.1f\n", s.AvgScore)
	fmt.Fprintf(&sb, "Postings:         %d processed of %d\n", s.Processed, s.TotalPostings)
	if s.Skipped > 0 || s.Failed > 0 {
		fmt.Fprintf(&sb, "Skipped / failed: %d / %d\n", s.Skipped, s.Failed)
	}
	if s.QuotaExceeded {
		sb.WriteString("⚠ Stopped early: provider quota exceeded\n")
	}

	p.printBox("RUN SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

func leadName(lead *types.Lead) string {
	if lead.Company.Name != "" {
		return lead.Company.Name
	}
	if lead.Job.Company != "" {
		return lead.Job.Company
	}
	return lead.Company.Domain
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
