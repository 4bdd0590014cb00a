package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want Platform
	}{
		{"https://job-boards.greenhouse.io/doordashusa/jobs/7063751", PlatformGreenhouse},
		{"https://jobs.lever.co/acme/0b6f", PlatformLever},
		{"https://acme.wd5.myworkdayjobs.com/en-US/External/job/123", PlatformWorkday},
		{"https://www.linkedin.com/jobs/view/3790000000", PlatformLinkedIn},
		{"https://WWW.Indeed.com/viewjob?jk=abc", PlatformIndeed},
		{"https://www.glassdoor.co.uk/job-listing/x", PlatformGlassdoor},
		{"https://jobs.ashbyhq.com/acme/123", PlatformAshby},
		{"https://jobs.smartrecruiters.com/Acme/1", PlatformSmartRecruiters},
		{"https://acme.bamboohr.com/careers/12", PlatformBambooHR},
		{"https://notlinkedin.com/jobs/1", PlatformUnknown},
		{"https://careers.acme.io/jobs/1", PlatformUnknown},
		{"://bad url", PlatformUnknown},
		{"", PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPlatform(tt.url))
		})
	}
}

func TestEmployerHosted(t *testing.T) {
	assert.True(t, EmployerHosted("https://careers.acme.io/jobs/1"))
	assert.False(t, EmployerHosted("https://jobs.lever.co/acme/1"))
	assert.False(t, EmployerHosted("/relative/path"))
	assert.False(t, EmployerHosted("://bad url"))
}
