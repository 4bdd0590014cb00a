// Package search adapts the web search API's jobs engine into job postings.
package search

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/lead-engine/internal/fetch"
	"github.com/jonathan/lead-engine/internal/provider"
	"github.com/jonathan/lead-engine/internal/types"
)

const providerName = "search"

// DefaultBaseURL is the public endpoint of the web search API.
const DefaultBaseURL = "https://serpapi.com"

// maxPagesPerQuery bounds pagination for one title/location combination.
const maxPagesPerQuery = 10

// Config holds the adapter settings.
type Config struct {
	APIKey  string
	BaseURL string
	Options *fetch.Options
}

// Client implements provider.JobSearcher.
type Client struct {
	http   *fetch.Client
	apiKey string
	now    func() time.Time
}

// NewClient creates a search client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("search API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient, err := fetch.NewClient(baseURL, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}
	return &Client{http: httpClient, apiKey: cfg.APIKey, now: time.Now}, nil
}

// SearchJobs runs one search per job title and location, paging until q.NumJobs postings
// are collected or results run out. Postings keep the provider's order.
// A failure before anything was collected is returned; a later failure ends the search
// with what was collected so far.
func (c *Client) SearchJobs(ctx context.Context, q types.SearchQuery) ([]types.JobPosting, error) {
	locations := q.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}

	seen := make(map[string]bool)
	var postings []types.JobPosting

	for _, title := range q.JobTitles {
		for _, location := range locations {
			token := ""
			for page := 0; page < maxPagesPerQuery; page++ {
				if len(postings) >= q.NumJobs {
					return postings, nil
				}

				resp, err := c.fetchPage(ctx, buildQuery(title, q.Keywords), location, token)
				if err != nil {
					if len(postings) > 0 && !provider.IsQuota(err) {
						return postings, nil
					}
					return postings, err
				}

				for _, r := range resp.JobsResult {
					key := r.JobID
					if key == "" {
						key = strings.ToLower(r.CompanyName + "|" + r.Title + "|" + r.Location)
					}
					if seen[key] {
						continue
					}
					seen[key] = true
					postings = append(postings, c.toPosting(r))
					if len(postings) >= q.NumJobs {
						return postings, nil
					}
				}

				token = resp.Pagination.NextPageToken
				if token == "" || len(resp.JobsResult) == 0 {
					break
				}
			}
		}
	}
	return postings, nil
}

func (c *Client) fetchPage(ctx context.Context, query, location, token string) (*jobsResponse, error) {
	params := url.Values{
		"engine":  {"google_jobs"},
		"q":       {query},
		"api_key": {c.apiKey},
	}
	if location != "" {
		params.Set("location", location)
	}
	if token != "" {
		params.Set("next_page_token", token)
	}

	var resp jobsResponse
	if err := c.http.DoJSON(ctx, fetch.Request{Path: "/search.json", Query: params}, &resp); err != nil {
		return nil, provider.Wrap(providerName, "search_jobs", err)
	}
	if resp.Error != "" {
		// "hasn't returned any results" arrives as a 200 with an error string.
		if strings.Contains(strings.ToLower(resp.Error), "any results") {
			return &jobsResponse{}, nil
		}
		if provider.MentionsQuota(resp.Error) {
			return nil, provider.QuotaError(providerName, "search_jobs", resp.Error)
		}
		return nil, &provider.Error{Provider: providerName, Op: "search_jobs", Message: resp.Error}
	}
	return &resp, nil
}

func buildQuery(title string, keywords []string) string {
	parts := append([]string{title}, keywords...)
	return strings.Join(parts, " ")
}

func (c *Client) toPosting(r jobResult) types.JobPosting {
	link, domain := pickLink(r)
	description, err := fetch.HTMLToText(r.Description)
	if err != nil {
		description = r.Description
	}

	p := types.JobPosting{
		Title:       strings.TrimSpace(r.Title),
		Company:     strings.TrimSpace(r.CompanyName),
		URL:         link,
		Domain:      domain,
		Location:    strings.TrimSpace(r.Location),
		Description: description,
		Platform:    platformName(r, link),
	}
	if posted, ok := parsePostedAt(r.DetectedExtensions.PostedAt, c.now()); ok {
		p.PostedAt = &posted
	}
	return p
}

// pickLink prefers an apply link on the employer's own site, since its host is the
// company domain. Otherwise the domain is guessed from the company name.
func pickLink(r jobResult) (string, string) {
	link := r.ShareLink
	for _, opt := range r.ApplyOptions {
		if opt.Link == "" {
			continue
		}
		if link == "" || link == r.ShareLink {
			link = opt.Link
		}
		if fetch.EmployerHosted(opt.Link) {
			if domain := companyDomain(opt.Link); domain != "" {
				return opt.Link, domain
			}
		}
	}
	return link, GuessDomain(r.CompanyName)
}

var careersPrefixes = []string{"careers.", "jobs.", "apply.", "join.", "work."}

func companyDomain(link string) string {
	domain := types.DomainFromURL(link)
	for _, prefix := range careersPrefixes {
		if strings.HasPrefix(domain, prefix) && strings.Count(domain, ".") > 1 {
			return strings.TrimPrefix(domain, prefix)
		}
	}
	return domain
}

var legalSuffixes = regexp.MustCompile(`(?i)[\s,]+(inc|llc|ltd|corp|corporation|co|gmbh|plc|limited|company)\.?$`)

// GuessDomain derives "<slug>.com" from a company name, e.g. "Acme Robotics, Inc." -> "acmerobotics.com".
func GuessDomain(company string) string {
	name := strings.TrimSpace(company)
	for {
		trimmed := legalSuffixes.ReplaceAllString(name, "")
		if trimmed == name {
			break
		}
		name = trimmed
	}

	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + ".com"
}

func platformName(r jobResult, link string) string {
	if p := fetch.DetectPlatform(link); p != fetch.PlatformUnknown {
		return string(p)
	}
	via := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(r.Via), "via "))
	if via != "" {
		return strings.ToLower(via)
	}
	return string(fetch.PlatformUnknown)
}

var postedAtPattern = regexp.MustCompile(`(?i)(\d+)\+?\s+(minute|hour|day|week|month)s?\s+ago`)

// parsePostedAt understands relative stamps such as "3 days ago" or "30+ days ago".
func parsePostedAt(raw string, now time.Time) (time.Time, bool) {
	m := postedAtPattern.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	var unit time.Duration
	switch strings.ToLower(m[2]) {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	}
	return now.Add(-time.Duration(n) * unit), true
}
