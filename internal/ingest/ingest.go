// Package ingest turns letter files into plain text for the analyzer.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/ledongthuc/pdf"
)

// Format names the kind of file a document was read from.
type Format string

const (
	FormatText  Format = "text"
	FormatPDF   Format = "pdf"
	FormatHTML  Format = "html"
	FormatEmail Format = "email"
)

// ErrNoTextLayer is returned for PDFs that only contain scanned images.
var ErrNoTextLayer = errors.New("pdf has no text layer; OCR is required")

// Document is the text extracted from one file.
type Document struct {
	Name   string
	Format Format
	Text   string
}

// ParseFile reads path and extracts its text based on the file extension.
func ParseFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(filepath.Base(path), raw)
}

// Parse extracts text from raw, choosing the format by the extension of name.
func Parse(name string, raw []byte) (*Document, error) {
	doc := &Document{Name: name}
	var err error

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt", ".text", ".md", "":
		doc.Format = FormatText
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%s is not valid UTF-8", name)
		}
		doc.Text = string(raw)
	case ".pdf":
		doc.Format = FormatPDF
		doc.Text, err = parsePDF(raw)
	case ".html", ".htm":
		doc.Format = FormatHTML
		doc.Text, err = HTMLText(string(raw))
	case ".eml":
		doc.Format = FormatEmail
		var m *Mail
		m, err = ParseMail(bytes.NewReader(raw))
		if err == nil {
			doc.Text = m.Letter()
		}
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func parsePDF(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var b strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, pageErr := p.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	text := normalizeWhitespace(b.String())
	if text == "" {
		return "", ErrNoTextLayer
	}
	return text, nil
}

var blockElements = "p, div, li, tr, h1, h2, h3, h4, h5, h6, table, section, article, header, footer, blockquote, pre"

// HTMLText renders an HTML document as plain text. Scripts and styles are
// dropped and block elements end a line.
func HTMLText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, noscript, head, template").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return normalizeWhitespace(doc.Text()), nil
}

// Mail is a parsed e-mail message.
type Mail struct {
	Subject  string
	From     string
	Date     time.Time
	Body     string // text/plain part
	HTMLBody string // text/html part
}

// ParseMail reads an RFC 5322 message. Encoded headers and non-UTF-8
// charsets are decoded.
func ParseMail(r io.Reader) (*Mail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse e-mail: %w", err)
	}
	defer mr.Close()

	m := &Mail{}
	m.Subject, _ = mr.Header.Subject()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		m.From = from[0].Address
	}
	m.Date, _ = mr.Header.Date()

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("failed to read e-mail part: %w", err)
		}
		if p == nil {
			break
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if ct == "" {
			ct = "text/plain"
		}
		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read e-mail body: %w", err)
		}

		switch {
		case strings.HasPrefix(ct, "text/plain") && m.Body == "":
			m.Body = string(body)
		case strings.HasPrefix(ct, "text/html") && m.HTMLBody == "":
			m.HTMLBody = string(body)
		}
	}
	return m, nil
}

// Text returns the plain body, falling back to the rendered HTML body.
func (m *Mail) Text() string {
	if strings.TrimSpace(m.Body) != "" {
		return m.Body
	}
	if m.HTMLBody == "" {
		return ""
	}
	text, err := HTMLText(m.HTMLBody)
	if err != nil {
		return ""
	}
	return text
}

// Letter formats the message the way a letter is read: the subject as a
// Betreff line followed by the body.
func (m *Mail) Letter() string {
	body := m.Text()
	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		return body
	}
	return "Betreff: " + subject + "\n\n" + body
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
