// Package docs loads earnings reports into plain text.
package docs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	sentenceRe = regexp.MustCompile(`[.!?]+\s+`)
)

// Document represents a parsed report
type Document struct {
	Title  string
	Path   string
	Blocks []Block
}

// Block is a unit of text from a report
type Block struct {
	Content string
	Type    string // "heading", "paragraph", "list", "table", "code"
}

// Text joins all blocks, one per line
func (d *Document) Text() string {
	var sb strings.Builder
	if d.Title != "" {
		sb.WriteString(d.Title)
		sb.WriteString("\n")
	}
	for _, b := range d.Blocks {
		sb.WriteString(b.Content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// Loader reads report files below a base directory.
// Relative paths are resolved against the base.
type Loader struct {
	basePath string
}

func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) || l.basePath == "" {
		return path
	}
	return filepath.Join(l.basePath, path)
}

// Load parses a single report. HTML files are parsed structurally; anything
// else is read as plain text split on blank lines.
func (l *Loader) Load(path string) (*Document, error) {
	path = l.resolve(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return parseHTML(f, path)
	case ".pdf":
		return nil, fmt.Errorf("pdf reports are not supported, convert %s to text or html first", filepath.Base(path))
	default:
		return parseText(f, path)
	}
}

// LoadAll loads every report below the base directory
func (l *Loader) LoadAll() ([]*Document, error) {
	var out []*Document
	err := filepath.WalkDir(l.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".html", ".htm", ".txt", ".md":
		default:
			return nil
		}
		doc, err := l.Load(path)
		if err != nil {
			return err
		}
		if len(doc.Blocks) > 0 {
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return out, nil
}

func parseText(r io.Reader, path string) (*Document, error) {
	doc := &Document{Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), Path: path}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var para []string
	flush := func() {
		if len(para) > 0 {
			doc.Blocks = append(doc.Blocks, Block{Content: normalize(strings.Join(para, " ")), Type: "paragraph"})
			para = para[:0]
		}
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		para = append(para, line)
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return doc, nil
}

func parseHTML(r io.Reader, path string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := &Document{Path: path}
	extractContent(root, doc)
	return doc, nil
}

// extractContent walks the tree collecting block elements. Children of a
// collected block are not visited again.
func extractContent(n *html.Node, doc *Document) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style":
			return
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				doc.Title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			doc.add(extractText(n), "heading")
			return
		case "p":
			doc.add(extractText(n), "paragraph")
			return
		case "li":
			if text := extractText(n); text != "" {
				doc.add("- "+text, "list")
			}
			return
		case "tr":
			doc.add(extractRow(n), "table")
			return
		case "pre", "code":
			doc.add(extractText(n), "code")
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractContent(c, doc)
	}
}

func (d *Document) add(text, typ string) {
	if text == "" {
		return
	}
	d.Blocks = append(d.Blocks, Block{Content: text, Type: typ})
}

func extractRow(tr *html.Node) string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			if text := extractText(c); text != "" {
				cells = append(cells, text)
			}
		}
	}
	return strings.Join(cells, " | ")
}

// extractText extracts all text from a node and its children
func extractText(n *html.Node) string {
	var text strings.Builder
	extractTextRecursive(n, &text)
	return normalize(text.String())
}

func extractTextRecursive(n *html.Node, text *strings.Builder) {
	if n.Type == html.TextNode {
		text.WriteString(n.Data)
		text.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractTextRecursive(c, text)
	}
}

func normalize(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// ChunkText splits text into chunks of at most maxChunkSize bytes on sentence
// boundaries. A single sentence longer than the limit becomes its own chunk.
func ChunkText(content string, maxChunkSize int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= maxChunkSize {
		return []string{content}
	}

	var chunks []string
	var currentChunk strings.Builder

	for _, sentence := range splitSentences(content) {
		if currentChunk.Len()+len(sentence) > maxChunkSize && currentChunk.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			currentChunk.Reset()
		}
		currentChunk.WriteString(sentence)
		currentChunk.WriteString(" ")
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

// splitSentences splits text after sentence delimiters, keeping them
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, m := range sentenceRe.FindAllStringIndex(text, -1) {
		if part := strings.TrimSpace(text[start:m[1]]); part != "" {
			sentences = append(sentences, part)
		}
		start = m[1]
	}
	if part := strings.TrimSpace(text[start:]); part != "" {
		sentences = append(sentences, part)
	}
	return sentences
}

// Truncate shortens text to at most maxLen bytes, preferring to cut after the
// last sentence end that fits. The cut never splits a rune.
func Truncate(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	for maxLen > 0 && !utf8.RuneStart(text[maxLen]) {
		maxLen--
	}
	cut := text[:maxLen]
	if i := strings.LastIndexAny(cut, ".!?\n"); i > 0 {
		return cut[:i+1]
	}
	return cut
}
