package search

// jobsResponse is the google_jobs engine payload of the web search API.
type jobsResponse struct {
	SearchMetadata struct {
		Status string `json:"status"`
	} `json:"search_metadata"`
	Error      string      `json:"error,omitempty"`
	JobsResult []jobResult `json:"jobs_results"`
	Pagination struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"serpapi_pagination"`
}

type jobResult struct {
	Title              string        `json:"title"`
	CompanyName        string        `json:"company_name"`
	Location           string        `json:"location"`
	Via                string        `json:"via"`
	Description        string        `json:"description"`
	ShareLink          string        `json:"share_link"`
	JobID              string        `json:"job_id"`
	ApplyOptions       []applyOption `json:"apply_options"`
	DetectedExtensions struct {
		PostedAt string `json:"posted_at"`
	} `json:"detected_extensions"`
}

type applyOption struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}
