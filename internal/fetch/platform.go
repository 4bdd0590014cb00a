package fetch

import (
	"net/url"
	"strings"
)

// Platform is a job board or applicant tracking system that hosts postings for
// many employers.
type Platform string

const (
	PlatformLinkedIn        Platform = "linkedin"
	PlatformIndeed          Platform = "indeed"
	PlatformGlassdoor       Platform = "glassdoor"
	PlatformZipRecruiter    Platform = "ziprecruiter"
	PlatformWellfound       Platform = "wellfound"
	PlatformGreenhouse      Platform = "greenhouse"
	PlatformLever           Platform = "lever"
	PlatformWorkday         Platform = "workday"
	PlatformAshby           Platform = "ashby"
	PlatformSmartRecruiters Platform = "smartrecruiters"
	PlatformBambooHR        Platform = "bamboohr"
	PlatformUnknown         Platform = "unknown"
)

// platformDomains maps registrable domains to platforms. Glassdoor runs country
// domains, so it is matched by label instead.
var platformDomains = map[string]Platform{
	"linkedin.com":        PlatformLinkedIn,
	"indeed.com":          PlatformIndeed,
	"ziprecruiter.com":    PlatformZipRecruiter,
	"wellfound.com":       PlatformWellfound,
	"greenhouse.io":       PlatformGreenhouse,
	"lever.co":            PlatformLever,
	"myworkdayjobs.com":   PlatformWorkday,
	"workday.com":         PlatformWorkday,
	"ashbyhq.com":         PlatformAshby,
	"smartrecruiters.com": PlatformSmartRecruiters,
	"bamboohr.com":        PlatformBambooHR,
}

// DetectPlatform identifies the hosting platform of a posting URL. Subdomains count,
// so "acme.wd5.myworkdayjobs.com" is Workday.
func DetectPlatform(rawURL string) Platform {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if host == "" {
		return PlatformUnknown
	}

	for h := host; h != ""; {
		if p, ok := platformDomains[h]; ok {
			return p
		}
		dot := strings.IndexByte(h, '.')
		if dot < 0 {
			break
		}
		h = h[dot+1:]
	}
	for _, label := range strings.Split(host, ".") {
		if label == "glassdoor" {
			return PlatformGlassdoor
		}
	}
	return PlatformUnknown
}

// EmployerHosted reports whether rawURL points at a site other than a known
// platform, so its host can stand in for the hiring company's domain.
func EmployerHosted(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	return DetectPlatform(rawURL) == PlatformUnknown
}
