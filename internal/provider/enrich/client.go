// Package enrich adapts the contact-enrichment API: organization lookup by domain,
// people search at a domain and email reveal.
package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/jonathan/lead-engine/internal/fetch"
	"github.com/jonathan/lead-engine/internal/provider"
	"github.com/jonathan/lead-engine/internal/types"
	"go.uber.org/zap"
)

const providerName = "enrich"

// DefaultBaseURL is the public endpoint of the enrichment API.
const DefaultBaseURL = "https://api.apollo.io"

// DefaultMaxContacts bounds contacts kept per domain.
const DefaultMaxContacts = 5

// Config holds the adapter settings.
type Config struct {
	APIKey       string
	BaseURL      string
	RevealEmails bool
	MaxContacts  int
	Options      *fetch.Options
	Logger       *zap.Logger
}

// Client implements provider.CompanyEnricher and provider.ContactFinder.
type Client struct {
	http         *fetch.Client
	revealEmails bool
	maxContacts  int
	logger       *zap.Logger
}

// NewClient creates an enrichment client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("enrichment API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := fetch.DefaultOptions()
	if cfg.Options != nil {
		copied := *cfg.Options
		opts = &copied
	}
	headers := map[string]string{"X-Api-Key": cfg.APIKey, "Cache-Control": "no-cache"}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	opts.Headers = headers

	httpClient, err := fetch.NewClient(baseURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrichment client: %w", err)
	}

	maxContacts := cfg.MaxContacts
	if maxContacts <= 0 {
		maxContacts = DefaultMaxContacts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, revealEmails: cfg.RevealEmails, maxContacts: maxContacts, logger: logger}, nil
}

// EnrichCompany looks up the organization behind domain.
// An unknown domain yields an error satisfying provider.IsNotFound.
func (c *Client) EnrichCompany(ctx context.Context, domain string) (*types.Company, error) {
	domain = types.DomainFromURL(domain)
	if domain == "" {
		return nil, provider.NotFoundError(providerName, "enrich_company", "empty domain")
	}

	var resp organizationResponse
	req := fetch.Request{Path: "/api/v1/organizations/enrich", Query: url.Values{"domain": {domain}}}
	if err := c.http.DoJSON(ctx, req, &resp); err != nil {
		return nil, provider.Wrap(providerName, "enrich_company", err)
	}
	if resp.Organization == nil || resp.Organization.Name == "" {
		return nil, provider.NotFoundError(providerName, "enrich_company", fmt.Sprintf("no organization for %s", domain))
	}

	org := resp.Organization
	company := &types.Company{
		Name:          strings.TrimSpace(org.Name),
		Domain:        domain,
		Industry:      strings.TrimSpace(org.Industry),
		EmployeeCount: org.EstimatedNumEmployees,
		SizeBucket:    types.SizeBucketFor(org.EstimatedNumEmployees),
		Location:      joinNonEmpty(", ", org.City, org.State, org.Country),
		Revenue:       org.AnnualRevenuePrinted,
		TechStack:     org.TechnologyNames,
		LinkedInURL:   org.LinkedInURL,
	}
	if org.PrimaryDomain != "" {
		company.Domain = strings.ToLower(org.PrimaryDomain)
	}
	return company, nil
}

// FindContacts searches people at domain, restricted to roles when given.
// Contacts are ordered by the position of their category in roles, then by provider order.
// Withheld emails are revealed when the client was configured to; a failed reveal keeps the
// contact without an email.
func (c *Client) FindContacts(ctx context.Context, domain string, roles []string) ([]types.Contact, error) {
	domain = types.DomainFromURL(domain)
	if domain == "" {
		return nil, nil
	}

	body := peopleSearchRequest{
		Domains: []string{domain},
		Titles:  titlesForRoles(roles),
		Page:    1,
		PerPage: c.maxContacts * 4,
	}
	var resp peopleSearchResponse
	if err := c.http.DoJSON(ctx, fetch.Request{Method: http.MethodPost, Path: "/api/v1/mixed_people/search", Body: body}, &resp); err != nil {
		return nil, provider.Wrap(providerName, "find_contacts", err)
	}

	var contacts []types.Contact
	for _, p := range resp.People {
		contact := toContact(p)
		if !matchesRoles(contact.RoleCategory, contact.Title, roles) {
			continue
		}
		contacts = append(contacts, contact)
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		return roleRank(contacts[i].RoleCategory, roles) < roleRank(contacts[j].RoleCategory, roles)
	})
	if len(contacts) > c.maxContacts {
		contacts = contacts[:c.maxContacts]
	}

	if c.revealEmails {
		for i := range contacts {
			if contacts[i].HasEmail() || contacts[i].ProviderID == "" {
				continue
			}
			if err := c.reveal(ctx, &contacts[i]); err != nil {
				if provider.IsQuota(err) {
					return nil, err
				}
				c.logger.Debug("email reveal failed",
					zap.String("domain", domain),
					zap.String("contact_id", contacts[i].ProviderID),
					zap.Error(err))
			}
		}
	}
	return contacts, nil
}

// RevealEmail discloses a withheld email for a contact found earlier.
func (c *Client) RevealEmail(ctx context.Context, contact *types.Contact) error {
	if contact.ProviderID == "" {
		return fmt.Errorf("contact %q has no provider id", contact.Name)
	}
	return c.reveal(ctx, contact)
}

func (c *Client) reveal(ctx context.Context, contact *types.Contact) error {
	var resp matchResponse
	req := fetch.Request{Method: http.MethodPost, Path: "/api/v1/people/match", Body: matchRequest{ID: contact.ProviderID}}
	if err := c.http.DoJSON(ctx, req, &resp); err != nil {
		return provider.Wrap(providerName, "reveal_email", err)
	}
	if resp.Person == nil {
		return provider.NotFoundError(providerName, "reveal_email", "no match")
	}
	email, status := usableEmail(resp.Person.Email, resp.Person.EmailStatus)
	if email == nil {
		return provider.NotFoundError(providerName, "reveal_email", "email still withheld")
	}
	contact.Email = email
	contact.EmailStatus = status
	return nil
}

func toContact(p person) types.Contact {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = joinNonEmpty(" ", p.FirstName, p.LastName)
	}
	email, status := usableEmail(p.Email, p.EmailStatus)
	contact := types.Contact{
		Name:         name,
		Title:        strings.TrimSpace(p.Title),
		Email:        email,
		EmailStatus:  status,
		RoleCategory: Categorize(p.Title),
		LinkedInURL:  p.LinkedInURL,
		ProviderID:   p.ID,
	}
	for _, phone := range p.PhoneNumbers {
		if n := firstNonEmpty(phone.SanitizedNumber, phone.RawNumber); n != "" {
			contact.Phone = n
			break
		}
	}
	return contact
}

// usableEmail filters the provider's placeholder addresses for locked emails.
func usableEmail(email, status string) (*string, string) {
	email = strings.TrimSpace(email)
	if email == "" || strings.Contains(email, "not_unlocked") || !strings.Contains(email, "@") {
		return nil, "withheld"
	}
	if status == "" {
		status = "unverified"
	}
	return &email, status
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
