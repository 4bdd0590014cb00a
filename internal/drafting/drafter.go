package drafting

import (
	"fmt"
	"strings"

	"github.com/jonathan/lead-engine/internal/types"
)

// maxTechStack caps how many technologies a draft mentions.
const maxTechStack = 3

type templateData struct {
	FirstName    string
	ContactName  string
	ContactTitle string
	Company      string
	JobTitle     string
	Industry     string
	Location     string
	TechStack    string
	SenderName   string
}

func sampleData() templateData {
	return templateData{
		FirstName:    "Riley",
		ContactName:  "Riley Hart",
		ContactTitle: "Recruiter",
		Company:      "Acme",
		JobTitle:     "Software Engineer",
		Industry:     "Software",
		Location:     "Remote",
		TechStack:    "Go, Postgres",
		SenderName:   "Jo",
	}
}

// Drafter renders subject and body for a lead.
type Drafter struct {
	templates  *TemplateSet
	senderName string
}

// New creates a Drafter. senderName signs every draft.
func New(templates *TemplateSet, senderName string) *Drafter {
	return &Drafter{templates: templates, senderName: senderName}
}

// Draft renders the outreach email addressed to the lead's primary contact: the first
// contact with a known email, else the first contact. The template is chosen by that
// contact's role category.
func (d *Drafter) Draft(company types.Company, job types.JobPosting, contacts []types.Contact) types.Draft {
	var contact types.Contact
	if len(contacts) > 0 {
		contact = contacts[0]
		for _, c := range contacts {
			if c.HasEmail() {
				contact = c
				break
			}
		}
	}

	data := templateData{
		FirstName:    firstName(contact.Name),
		ContactName:  contact.Name,
		ContactTitle: contact.Title,
		Company:      firstNonEmpty(company.Name, job.Company, company.Domain),
		JobTitle:     firstNonEmpty(job.Title, "open"),
		Industry:     company.Industry,
		Location:     firstNonEmpty(job.Location, company.Location),
		TechStack:    techStack(company.TechStack),
		SenderName:   d.senderName,
	}

	if d.templates != nil {
		if c, ok := d.templates.lookup(contact.RoleCategory); ok {
			subject, body, err := c.render(data)
			if err == nil {
				return types.Draft{Subject: subject, Body: body}
			}
		}
	}
	return fallbackDraft(data)
}

func fallbackDraft(data templateData) types.Draft {
	body := fmt.Sprintf("Hi %s,\n\nI'm reaching out about the %s role at %s and would love to learn more.\n\nBest,\n%s",
		data.FirstName, data.JobTitle, data.Company, data.SenderName)
	return types.Draft{
		Subject: fmt.Sprintf("%s role at %s", data.JobTitle, data.Company),
		Body:    strings.TrimSpace(body),
	}
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

func techStack(stack []string) string {
	if len(stack) > maxTechStack {
		stack = stack[:maxTechStack]
	}
	return strings.Join(stack, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
