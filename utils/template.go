package utils

import (
	"fmt"
	"html"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"leadpilot/models"
)

// Renderer turns a template into the personalized text for one prospect.
// Placeholders are substituted first, then spin blocks are resolved, so a
// spin alternative may itself contain a placeholder-free variant of the copy.
type Renderer struct {
	rnd *rand.Rand
}

func NewRenderer() *Renderer {
	return &Renderer{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeededRenderer returns a renderer with a fixed spin seed.
func NewSeededRenderer(seed int64) *Renderer {
	return &Renderer{rnd: rand.New(rand.NewSource(seed))}
}

var bareURLPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Render produces the final text for a subject or body template.
func (r *Renderer) Render(text string, p *models.Prospect) string {
	return r.resolveSpins(substitutePlaceholders(text, p))
}

// substitutePlaceholders fills the personalization tokens, falling back to a
// generic phrase when the prospect field is empty.
func substitutePlaceholders(text string, p *models.Prospect) string {
	replacer := strings.NewReplacer(
		"{{name}}", FirstName(p.Name, "there"),
		"{{company}}", fallback(p.Company, "your company"),
		"{{industry}}", fallback(strings.ToLower(p.Industry), "your industry"),
		"{{title}}", fallback(strings.ToLower(p.Title), "your role"),
	)
	return replacer.Replace(text)
}

// resolveSpins replaces each {spin}a|b|c{endspin} block with one alternative.
func (r *Renderer) resolveSpins(text string) string {
	const (
		open  = "{spin}"
		close = "{endspin}"
	)

	var b strings.Builder
	for {
		start := strings.Index(text, open)
		if start == -1 {
			break
		}
		end := strings.Index(text[start:], close)
		if end == -1 {
			// Unterminated block is left as-is
			break
		}
		end += start

		b.WriteString(text[:start])
		alternatives := strings.Split(text[start+len(open):end], "|")
		b.WriteString(alternatives[r.rnd.Intn(len(alternatives))])
		text = text[end+len(close):]
	}
	b.WriteString(text)
	return b.String()
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

// HTMLOptions controls the tracking instrumentation applied by BuildHTML.
type HTMLOptions struct {
	BaseURL     string
	Token       string
	TrackOpens  bool
	TrackClicks bool
	SenderName  string
}

// BuildHTML wraps a rendered plain-text body into the HTML actually sent:
// paragraphs, link tracking, the open pixel, a signature and an unsubscribe
// footer. An unsubscribe link is always present.
func BuildHTML(body string, opts HTMLOptions) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family:Arial,Helvetica,sans-serif;font-size:14px;color:#222;line-height:1.5">`)

	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		para = html.EscapeString(para)
		para = strings.ReplaceAll(para, "\n", "<br>")
		if opts.TrackClicks {
			para = bareURLPattern.ReplaceAllStringFunc(para, func(raw string) string {
				tracked := ClickURL(opts.BaseURL, opts.Token, raw)
				return fmt.Sprintf(`<a href="%s">%s</a>`, tracked, raw)
			})
		}
		b.WriteString("<p>")
		b.WriteString(para)
		b.WriteString("</p>")
	}

	if opts.SenderName != "" {
		b.WriteString(fmt.Sprintf("<p>Best regards,<br>%s</p>", html.EscapeString(opts.SenderName)))
	}

	b.WriteString(fmt.Sprintf(
		`<p style="font-size:11px;color:#999">If you'd rather not hear from me again, <a href="%s">unsubscribe here</a>.</p>`,
		UnsubscribeURL(opts.BaseURL, opts.Token),
	))

	if opts.TrackOpens {
		b.WriteString(fmt.Sprintf(
			`<img src="%s" width="1" height="1" alt="" style="display:none">`,
			PixelURL(opts.BaseURL, opts.Token),
		))
	}

	b.WriteString("</body></html>")
	return b.String()
}
