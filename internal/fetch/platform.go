package fetch

import (
	"net/url"
	"strings"
)

// Publisher represents a news site with known article markup.
type Publisher string

const (
	// PublisherDefenseNews is defensenews.com
	PublisherDefenseNews Publisher = "defensenews"
	// PublisherBreakingDefense is breakingdefense.com
	PublisherBreakingDefense Publisher = "breakingdefense"
	// PublisherDefenseOne is defenseone.com
	PublisherDefenseOne Publisher = "defenseone"
	// PublisherTechCrunch is techcrunch.com
	PublisherTechCrunch Publisher = "techcrunch"
	// PublisherReuters is reuters.com
	PublisherReuters Publisher = "reuters"
	// PublisherUnknown is an unrecognized site
	PublisherUnknown Publisher = "unknown"
)

var publisherHosts = []struct {
	suffix    string
	publisher Publisher
}{
	{"defensenews.com", PublisherDefenseNews},
	{"breakingdefense.com", PublisherBreakingDefense},
	{"defenseone.com", PublisherDefenseOne},
	{"techcrunch.com", PublisherTechCrunch},
	{"reuters.com", PublisherReuters},
}

// DetectPublisher identifies the publisher from an article URL.
func DetectPublisher(urlStr string) Publisher {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PublisherUnknown
	}

	host := strings.ToLower(parsed.Hostname())
	for _, h := range publisherHosts {
		if host == h.suffix || strings.HasSuffix(host, "."+h.suffix) {
			return h.publisher
		}
	}
	return PublisherUnknown
}

// PublisherContentSelectors returns article body selectors for a publisher,
// followed by the generic ones.
func PublisherContentSelectors(p Publisher) []string {
	var specific []string
	switch p {
	case PublisherDefenseNews:
		specific = []string{".a-article-body", "article .o-articleBody"}
	case PublisherBreakingDefense:
		specific = []string{".entry-content", ".post-body"}
	case PublisherDefenseOne:
		specific = []string{".content-body", ".article-body"}
	case PublisherTechCrunch:
		specific = []string{".wp-block-post-content", ".article-content"}
	case PublisherReuters:
		specific = []string{"[data-testid='ArticleBody']", ".article-body__content"}
	}
	return append(specific, DefaultTextSelectors()...)
}

// PublisherNoiseSelectors returns elements to strip before text extraction.
func PublisherNoiseSelectors(p Publisher) []string {
	common := []string{
		// Newsletter and paywall prompts
		".newsletter-signup",
		".subscribe",
		".paywall",
		".piano-offer",

		// Social and share buttons
		".social-share",
		".share-buttons",
		".social-links",

		// Related content rails
		".related-articles",
		".recommended",
		".more-stories",

		// Cookie and GDPR
		".cookie-consent",
		".gdpr-notice",
	}

	switch p {
	case PublisherDefenseNews:
		return append(common, ".m-storyPromo", ".a-author-bio")
	case PublisherBreakingDefense:
		return append(common, ".bd-newsletter", ".author-box")
	case PublisherTechCrunch:
		return append(common, ".wp-block-tc23-podcast-player", ".inline-cta")
	case PublisherReuters:
		return append(common, "[data-testid='Toolbar']", "[class*='trust-badge']")
	default:
		return common
	}
}

// ExtractArticleText reduces a page to its article text using the
// publisher's selectors when the URL is recognised.
func ExtractArticleText(html, pageURL string) (string, error) {
	p := DetectPublisher(pageURL)
	return ExtractMainText(html, PublisherContentSelectors(p), PublisherNoiseSelectors(p)...)
}
