package preview

import "strings"

// DefaultBotAgents are the user-agent tokens of link-preview crawlers.
var DefaultBotAgents = []string{
	"facebookexternalhit",
	"Facebot",
	"Twitterbot",
	"WhatsApp",
	"TelegramBot",
	"LinkedInBot",
	"Slackbot",
	"Discord",
	"Pinterest",
	"Googlebot",
	"bingbot",
	"Applebot",
	"redditbot",
	"SkypeUriPreview",
	"vkShare",
	"Embedly",
	"quora link preview",
}

// Audience selects which document variant a request receives.
type Audience string

// Audiences.
const (
	AudienceCrawler Audience = "crawler"
	AudienceHuman   Audience = "human"
)

// Classifier matches user agents against a fixed list of crawler tokens.
type Classifier struct {
	tokens []string // original spelling, reported on match
	lower  []string
}

// NewClassifier builds a Classifier from DefaultBotAgents plus extra literal
// tokens. Blank and duplicate tokens are ignored.
func NewClassifier(extra ...string) *Classifier {
	c := &Classifier{}
	seen := make(map[string]struct{})
	for _, raw := range append(append([]string(nil), DefaultBotAgents...), extra...) {
		token := strings.TrimSpace(raw)
		key := strings.ToLower(token)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		c.tokens = append(c.tokens, token)
		c.lower = append(c.lower, key)
	}
	return c
}

// Match reports the first crawler token contained in userAgent, ignoring case.
func (c *Classifier) Match(userAgent string) (string, bool) {
	if userAgent == "" {
		return "", false
	}
	ua := strings.ToLower(userAgent)
	for i, token := range c.lower {
		if strings.Contains(ua, token) {
			return c.tokens[i], true
		}
	}
	return "", false
}

// Classify returns the audience for userAgent.
func (c *Classifier) Classify(userAgent string) Audience {
	if _, ok := c.Match(userAgent); ok {
		return AudienceCrawler
	}
	return AudienceHuman
}
