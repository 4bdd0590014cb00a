package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/types"
)

func sampleLead() types.Lead {
	email := "jane@acme.io"
	return types.Lead{
		Company: types.Company{Name: "Acme Robotics", Industry: "Robotics"},
		Job:     types.JobPosting{Title: "Backend Engineer"},
		Contacts: []types.Contact{
			{Name: "Jane Doe", Email: &email},
			{Name: "John Roe"},
		},
		Draft: types.Draft{Subject: "Backend Engineer opening at Acme Robotics"},
		Score: 82,
	}
}

func TestPrintEvent_CompactLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.PrintEvent(pipeline.Status{Message: "Searching for jobs…"})
	p.PrintEvent(pipeline.LeadEvent{Lead: sampleLead(), Progress: 33})
	p.PrintEvent(pipeline.Error{Message: "enrichment failed", Company: "Globex", Progress: 67})
	p.PrintEvent(pipeline.QuotaExceeded{Message: "Enrichment quota exceeded", Progress: 67})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[  0%] Searching for jobs…", lines[0])
	assert.Equal(t, "[ 33%] ✓ Acme Robotics (score 82, 2 contacts)", lines[1])
	assert.Equal(t, "[ 67%] ✗ Globex: enrichment failed", lines[2])
	assert.Contains(t, lines[3], "⚠ Enrichment quota exceeded")
}

func TestPrintEvent_FatalError(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).PrintEvent(pipeline.Error{Message: "Job search failed", Fatal: true})
	assert.Equal(t, "[  0%] ✗ fatal: Job search failed\n", buf.String())
}

func TestPrintEvent_VerboseLead(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).PrintEvent(pipeline.LeadEvent{Lead: sampleLead()})

	output := buf.String()
	assert.Contains(t, output, "LEAD")
	assert.Contains(t, output, "Acme Robotics")
	assert.Contains(t, output, "Robotics")
	assert.Contains(t, output, "jane@acme.io")
	assert.Contains(t, output, "(email withheld)")
	assert.Contains(t, output, "Subject:")
}

func TestPrintLead_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).PrintLead(nil)
	assert.Empty(t, buf.String())
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.PrintEvent(pipeline.Complete{
		Message: "Generated 2 leads",
		Summary: pipeline.Summary{
			TotalGenerated: 2, AvgScore: 71.5, TotalContacts: 5,
			Processed: 3, TotalPostings: 3, Skipped: 1, QuotaExceeded: true,
		},
		Progress: 100,
	})

	output := buf.String()
	assert.Contains(t, output, "RUN SUMMARY")
	assert.Contains(t, output, "Leads generated:  2")
	assert.Contains(t, output, "Average score:    71.5")
	assert.Contains(t, output, "3 processed of 3")
	assert.Contains(t, output, "Skipped / failed: 1 / 0")
	assert.Contains(t, output, "quota exceeded")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	p.printBox("TITLE", strings.Repeat("x", 200))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", true)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = NewLogger("INFO", false)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}
