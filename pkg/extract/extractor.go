package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// Result is the raw text of a file plus what was learned while reading it.
type Result struct {
	Text      string
	MimeType  string
	Extractor string
	CharCount int
}

type Extractor interface {
	Extract(filename string, data []byte) (*Result, error)
}

// TextExtractor decodes text-based formats. Binary office formats are
// rejected rather than guessed at.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

var textExtensions = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html",
	".htm":  "text/html",
}

// DetectType sniffs the content and falls back to the file extension for
// formats that look like plain text.
func DetectType(filename string, data []byte) string {
	detected := mimetype.Detect(data)
	if ext, ok := textExtensions[strings.ToLower(filepath.Ext(filename))]; ok && detected.Is("text/plain") {
		return ext
	}
	// drop parameters such as charset
	mime, _, _ := strings.Cut(detected.String(), ";")
	return mime
}

func isText(mime string) bool {
	switch mime {
	case "application/json", "application/xml", "text/xml":
		return true
	}
	return strings.HasPrefix(mime, "text/")
}

func (e *TextExtractor) Extract(filename string, data []byte) (*Result, error) {
	mime := DetectType(filename, data)
	if !isText(mime) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}

	text := string(bytes.ToValidUTF8(data, nil))
	name := "plain"
	if mime == "text/html" {
		var err error
		text, err = htmlText(text)
		if err != nil {
			return nil, fmt.Errorf("error extracting text from %s: %w", filename, err)
		}
		name = "html"
	}

	return &Result{
		Text:      text,
		MimeType:  mime,
		Extractor: name,
		CharCount: utf8.RuneCountInString(text),
	}, nil
}

// htmlText keeps text nodes and drops script and style content.
func htmlText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String(), nil
}
