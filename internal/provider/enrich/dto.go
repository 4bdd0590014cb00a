package enrich

// organizationResponse is the payload of the organization enrichment endpoint.
type organizationResponse struct {
	Organization *organization `json:"organization"`
}

type organization struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	PrimaryDomain         string   `json:"primary_domain"`
	WebsiteURL            string   `json:"website_url"`
	Industry              string   `json:"industry"`
	EstimatedNumEmployees int      `json:"estimated_num_employees"`
	City                  string   `json:"city"`
	State                 string   `json:"state"`
	Country               string   `json:"country"`
	AnnualRevenuePrinted  string   `json:"annual_revenue_printed"`
	TechnologyNames       []string `json:"technology_names"`
	LinkedInURL           string   `json:"linkedin_url"`
}

type peopleSearchRequest struct {
	Domains     []string `json:"q_organization_domains_list"`
	Titles      []string `json:"person_titles,omitempty"`
	Seniorities []string `json:"person_seniorities,omitempty"`
	Page        int      `json:"page"`
	PerPage     int      `json:"per_page"`
}

type peopleSearchResponse struct {
	People     []person `json:"people"`
	Pagination struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

type person struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Title        string        `json:"title"`
	Email        string        `json:"email"`
	EmailStatus  string        `json:"email_status"`
	LinkedInURL  string        `json:"linkedin_url"`
	Seniority    string        `json:"seniority"`
	Departments  []string      `json:"departments"`
	PhoneNumbers []phoneNumber `json:"phone_numbers"`
}

type phoneNumber struct {
	RawNumber       string `json:"raw_number"`
	SanitizedNumber string `json:"sanitized_number"`
}

type matchRequest struct {
	ID string `json:"id"`
}

type matchResponse struct {
	Person *person `json:"person"`
}
