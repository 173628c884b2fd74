// Package inspect fetches a page the way a link-preview crawler does and
// reports the Open Graph and Twitter Card tags it carries.
package inspect

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// Agents maps short names to the User-Agent strings real preview crawlers send.
var Agents = map[string]string{
	"facebook": "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)",
	"twitter":  "Twitterbot/1.0",
	"whatsapp": "WhatsApp/2.23.20.0 A",
	"telegram": "TelegramBot (like TwitterBot)",
	"linkedin": "LinkedInBot/1.0 (compatible; Mozilla/5.0; Apache-HttpClient +http://www.linkedin.com)",
	"slack":    "Slackbot-LinkExpanding 1.0 (+https://api.slack.com/robots)",
	"discord":  "Mozilla/5.0 (compatible; Discordbot/2.0; +https://discordapp.com)",
	"browser":  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
}

// RequiredTags are the tags a preview must carry to unfurl on every platform.
var RequiredTags = []string{
	"og:type",
	"og:url",
	"og:title",
	"og:description",
	"og:image",
	"twitter:card",
	"twitter:title",
	"twitter:image",
}

// Config controls collector behavior.
type Config struct {
	// Agent is a key of Agents or a literal User-Agent string.
	Agent   string
	Timeout time.Duration
}

// Report is what a crawler saw at a URL.
type Report struct {
	URL          string
	StatusCode   int
	UserAgent    string
	Title        string
	Tags         map[string]string
	CacheControl string
	Vary         string
	ETag         string
}

// Missing lists required tags that are absent or empty, in RequiredTags order.
func (r Report) Missing() []string {
	var out []string
	for _, name := range RequiredTags {
		if strings.TrimSpace(r.Tags[name]) == "" {
			out = append(out, name)
		}
	}
	return out
}

// TagNames returns the collected tag names sorted.
func (r Report) TagNames() []string {
	names := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Inspector fetches pages with a crawler identity.
type Inspector struct {
	cfg           Config
	userAgent     string
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// New builds an Inspector.
func New(cfg Config) *Inspector {
	ua := cfg.Agent
	if ua == "" {
		ua = "facebook"
	}
	if known, ok := Agents[strings.ToLower(ua)]; ok {
		ua = known
	}
	c := colly.NewCollector(colly.Async(false), colly.UserAgent(ua))
	c.WithTransport(newHTTPTransport())
	return &Inspector{cfg: cfg, userAgent: ua, baseCollector: c}
}

// UserAgent is the header value requests are sent with.
func (i *Inspector) UserAgent() string {
	return i.userAgent
}

// Inspect visits target once and collects its preview tags. Non-2xx
// responses are reported, not returned as errors.
func (i *Inspector) Inspect(ctx context.Context, target string) (Report, error) {
	report := Report{URL: target, UserAgent: i.userAgent, Tags: map[string]string{}}
	var fetchErr error
	collector := i.buildCollector()
	i.configureCollectorHooks(collector, &report, &fetchErr)

	if err := runCollector(ctx, collector, target, &fetchErr); err != nil {
		return Report{}, err
	}
	return report, nil
}

func (i *Inspector) buildCollector() *colly.Collector {
	collector := i.baseCollector.Clone()
	collector.UserAgent = i.userAgent
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	timeout := i.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func (i *Inspector) configureCollectorHooks(hooks collectorHooks, report *Report, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		report.URL = r.Request.URL.String()
		report.StatusCode = r.StatusCode
		if r.Headers != nil {
			report.CacheControl = r.Headers.Get("Cache-Control")
			report.Vary = r.Headers.Get("Vary")
			report.ETag = r.Headers.Get("ETag")
		}
	})

	hooks.OnHTML("head > title", func(e *colly.HTMLElement) {
		if report.Title == "" {
			report.Title = strings.TrimSpace(e.Text)
		}
	})

	hooks.OnHTML("meta[content]", func(e *colly.HTMLElement) {
		name := e.Attr("property")
		if name == "" {
			name = e.Attr("name")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return
		}
		// First occurrence wins, as it does for the platforms' parsers.
		if _, seen := report.Tags[name]; !seen {
			report.Tags[name] = e.Attr("content")
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("inspect canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("inspect visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("inspect response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
