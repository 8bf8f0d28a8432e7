package fetch

import (
	"net/url"
	"strings"
)

// Platform is a job board product.
type Platform string

const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformAshby      Platform = "ashby"
	PlatformUnknown    Platform = "unknown"
)

// Board holds the extraction rules of one platform.
type Board struct {
	Platform Platform
	// Hosts are matched against the end of the URL host.
	Hosts []string
	// Content selectors are tried in order.
	Content []string
	Noise   []string
}

// applicationNoise is the application form and legal boilerplate every board
// appends after the posting.
var applicationNoise = []string{
	"form",
	"#application-form",
	".application-form",
	".application--container",
	".apply-button-container",
	"[data-testid='application-form']",
	".voluntary-disclosure",
	".eeo-statement",
	".eeo-section",
	"[data-testid='eeo']",
	".legal-disclosure",
	".self-identification",
	".social-share",
	".share-buttons",
	".cookie-consent",
	".gdpr-notice",
}

var boards = []Board{
	{
		Platform: PlatformGreenhouse,
		Hosts:    []string{"greenhouse.io"},
		Content:  []string{".job__description.body", ".job__description", ".job-description__content", "#content", ".job-post-container"},
		Noise:    []string{".application--wrapper", ".voluntary-self-id", ".voluntary-self-id-wrapper", "#usa_self_id_section", ".post-apply"},
	},
	{
		Platform: PlatformLever,
		Hosts:    []string{"lever.co"},
		Content:  []string{".posting-page", ".section-wrapper.page-full-width", ".posting-description", ".content"},
		Noise:    []string{".apply-section", ".lever-application-form", ".posting-apply"},
	},
	{
		Platform: PlatformWorkday,
		Hosts:    []string{"myworkdayjobs.com", "workday.com"},
		Content:  []string{"[data-automation-id='jobDescription']", ".gwt-HTML", ".job-description"},
		Noise:    []string{"[data-automation-id='applyButton']", ".application-section"},
	},
	{
		Platform: PlatformAshby,
		Hosts:    []string{"ashbyhq.com"},
		Content:  []string{"[class*='_descriptionText']", "[class*='ashby-job-posting-right-pane']", "main"},
		Noise:    []string{"[class*='_applicationForm']", "[class*='ashby-application-form']"},
	},
}

// genericBoard is used for career pages on unknown hosts.
var genericBoard = Board{
	Platform: PlatformUnknown,
	Content: []string{
		".job-description", "#job-description", ".job-content", "#job-content",
		".posting-content", ".job-details", "[data-testid='job-description']",
		"main", "article", ".content", "#content",
	},
}

// DetectPlatform identifies the job board behind a URL.
func DetectPlatform(rawURL string) Platform {
	return BoardFor(rawURL).Platform
}

// BoardFor returns the extraction rules for a URL. Board noise always includes
// the shared application boilerplate.
func BoardFor(rawURL string) Board {
	b := genericBoard
	if u, err := url.Parse(rawURL); err == nil {
		host := strings.ToLower(u.Hostname())
		for _, candidate := range boards {
			if matchesHost(host, candidate.Hosts) {
				b = candidate
				break
			}
		}
	}
	b.Noise = append(append([]string(nil), applicationNoise...), b.Noise...)
	return b
}

// matchesHost reports whether host is one of suffixes or a subdomain of one.
func matchesHost(host string, suffixes []string) bool {
	for _, s := range suffixes {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}
