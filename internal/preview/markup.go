package preview

import (
	"context"
	"html"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-preview/internal/metrics"
)

// Open Graph image hints sent with every preview.
const (
	ogImageWidth  = "1200"
	ogImageHeight = "630"
	ogImageType   = "image/jpeg"
)

// fallbackShell is served to people when the built application shell cannot
// be read.
const fallbackShell = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
</head>
<body>
  <div id="root"></div>
</body>
</html>`

var (
	titleElement = regexp.MustCompile(`(?is)<title[^>]*>.*?</title>`)
	openingHead  = regexp.MustCompile(`(?i)<head(\s[^>]*)?>`)
	openingHTML  = regexp.MustCompile(`(?i)<html(\s[^>]*)?>`)
)

// ShellSource loads the prebuilt application HTML.
type ShellSource interface {
	Load(ctx context.Context) ([]byte, error)
}

// Builder renders preview documents.
type Builder struct {
	site   Site
	shell  ShellSource
	logger *zap.Logger
}

// NewBuilder returns a Builder. shell may be nil, in which case people always
// get the synthetic shell.
func NewBuilder(site Site, shell ShellSource, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{site: site, shell: shell, logger: logger}
}

// Build renders the document for audience. Output depends only on m,
// audience and the shell contents.
func (b *Builder) Build(ctx context.Context, m Meta, audience Audience) string {
	if audience == AudienceCrawler {
		return b.crawlerDocument(m)
	}
	return b.humanDocument(ctx, m)
}

// EscapeHTML encodes the five HTML-significant characters.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

func (b *Builder) headTags(m Meta) string {
	title := EscapeHTML(m.Title)
	description := EscapeHTML(m.Description)
	image := EscapeHTML(m.ImageURL)
	canonical := EscapeHTML(m.CanonicalURL)

	var sb strings.Builder
	sb.WriteString("  <title>" + title + "</title>\n")
	sb.WriteString(`  <meta name="description" content="` + description + `" />` + "\n")
	sb.WriteString(`  <link rel="canonical" href="` + canonical + `" />` + "\n")
	sb.WriteString("\n  <!-- Open Graph -->\n")
	writeMeta(&sb, "property", "og:type", "profile")
	writeMeta(&sb, "property", "og:url", canonical)
	writeMeta(&sb, "property", "og:title", title)
	writeMeta(&sb, "property", "og:description", description)
	writeMeta(&sb, "property", "og:image", image)
	writeMeta(&sb, "property", "og:image:width", ogImageWidth)
	writeMeta(&sb, "property", "og:image:height", ogImageHeight)
	writeMeta(&sb, "property", "og:image:type", ogImageType)
	if b.site.Brand != "" {
		writeMeta(&sb, "property", "og:site_name", EscapeHTML(b.site.Brand))
	}
	if b.site.Locale != "" {
		writeMeta(&sb, "property", "og:locale", EscapeHTML(b.site.Locale))
	}
	sb.WriteString("\n  <!-- Twitter Card -->\n")
	writeMeta(&sb, "name", "twitter:card", "summary_large_image")
	writeMeta(&sb, "name", "twitter:title", title)
	writeMeta(&sb, "name", "twitter:description", description)
	writeMeta(&sb, "name", "twitter:image", image)
	return sb.String()
}

// writeMeta writes one meta tag; content must already be escaped.
func writeMeta(sb *strings.Builder, attr, key, content string) {
	sb.WriteString(`  <meta ` + attr + `="` + key + `" content="` + content + `" />` + "\n")
}

func (b *Builder) crawlerDocument(m Meta) string {
	canonical := EscapeHTML(m.CanonicalURL)
	lang := "en"
	if b.site.Locale != "" {
		lang = strings.ReplaceAll(b.site.Locale, "_", "-")
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString(`<html lang="` + EscapeHTML(lang) + `">` + "\n")
	sb.WriteString("<head>\n")
	sb.WriteString(`  <meta charset="UTF-8" />` + "\n")
	sb.WriteString(b.headTags(m))
	sb.WriteString("\n")
	sb.WriteString(`  <meta http-equiv="refresh" content="0;url=` + canonical + `" />` + "\n")
	sb.WriteString(`  <script>window.location.href = "` + canonical + `";</script>` + "\n")
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")
	sb.WriteString(`  <p>` + EscapeHTML(b.redirectNotice()) + ` <a href="` + canonical + `">` + EscapeHTML(m.DisplayName) + "</a>...</p>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")
	return sb.String()
}

func (b *Builder) redirectNotice() string {
	if b.site.RedirectNotice != "" {
		return b.site.RedirectNotice
	}
	if strings.HasPrefix(strings.ToLower(b.site.Locale), "pt") {
		return "Redirecionando para"
	}
	return "Redirecting to"
}

func (b *Builder) humanDocument(ctx context.Context, m Meta) string {
	shell := b.loadShell(ctx)
	shell = titleElement.ReplaceAllString(shell, "")
	tags := "\n" + b.headTags(m)

	if loc := openingHead.FindStringIndex(shell); loc != nil {
		return shell[:loc[1]] + tags + shell[loc[1]:]
	}
	head := "<head>" + tags + "</head>\n"
	if loc := openingHTML.FindStringIndex(shell); loc != nil {
		return shell[:loc[1]] + "\n" + head + shell[loc[1]:]
	}
	return head + shell
}

func (b *Builder) loadShell(ctx context.Context) string {
	if b.shell == nil {
		metrics.ObserveShellFallback()
		return fallbackShell
	}
	raw, err := b.shell.Load(ctx)
	if err != nil || len(raw) == 0 {
		b.logger.Warn("application shell unavailable, serving synthetic shell", zap.Error(err))
		metrics.ObserveShellFallback()
		return fallbackShell
	}
	return string(raw)
}
