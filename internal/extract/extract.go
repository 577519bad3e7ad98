// Package extract turns documentation markdown files into plain text plus
// the metadata the indexing pipeline wants: a title from the YAML
// frontmatter, a chapter label classified from the file path, and a page
// name derived from the file name.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Page is one extracted markdown document.
type Page struct {
	Path    string
	Title   string
	Chapter string
	Name    string
	Text    string
}

var frontmatterDelim = []byte("---")

// MarkdownFile reads and extracts a single markdown file. The chapters map
// classifies path segments into chapter labels.
func MarkdownFile(path string, chapters map[string]string) (*Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	title, body, err := Markdown(raw)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", path, err)
	}
	return &Page{
		Path:    path,
		Title:   title,
		Chapter: ChapterForPath(path, chapters),
		Name:    PageName(path),
		Text:    body,
	}, nil
}

// Markdown splits the frontmatter off raw markdown, returning the
// frontmatter title (empty when absent) and the body converted to plain
// text.
func Markdown(raw []byte) (title, body string, err error) {
	meta, content, err := splitFrontmatter(raw)
	if err != nil {
		return "", "", err
	}
	if t, ok := meta["title"].(string); ok {
		title = t
	}
	body, err = PlainText(content)
	if err != nil {
		return "", "", err
	}
	return title, body, nil
}

// splitFrontmatter separates a leading YAML frontmatter block from the
// markdown body. Content without a frontmatter fence passes through with
// empty metadata.
func splitFrontmatter(raw []byte) (map[string]any, []byte, error) {
	trimmed := bytes.TrimPrefix(raw, []byte("\ufeff"))
	if !bytes.HasPrefix(trimmed, frontmatterDelim) {
		return nil, raw, nil
	}
	rest := trimmed[len(frontmatterDelim):]
	if len(rest) == 0 || (rest[0] != '\n' && !bytes.HasPrefix(rest, []byte("\r\n"))) {
		return nil, raw, nil
	}
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, raw, nil
	}
	block := rest[:end]
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}

	meta := map[string]any{}
	if err := yaml.Unmarshal(block, &meta); err != nil {
		return nil, nil, fmt.Errorf("parsing frontmatter: %w", err)
	}
	return meta, body, nil
}

var collapseBlankLines = regexp.MustCompile(`\n{3,}`)

// PlainText converts markdown to plain text by walking the goldmark AST.
// Headings, links and emphasis keep their text, image references are
// dropped, code blocks keep their code.
func PlainText(src []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.Blockquote,
				*ast.FencedCodeBlock, *ast.CodeBlock:
				b.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			writeLines(&b, src, node)
		case *ast.CodeBlock:
			writeLines(&b, src, node)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("walking markdown: %w", err)
	}

	out := collapseBlankLines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out), nil
}

func writeLines(b *strings.Builder, src []byte, n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
}

// ChapterForPath classifies a documentation file into a chapter label by
// matching path segments against the configured map. Files outside any
// mapped segment get a label from the file name, defaulting to General.
func ChapterForPath(path string, chapters map[string]string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if label, ok := chapters[part]; ok {
			return label
		}
	}
	switch stem(path) {
	case "intro":
		return "Introduction"
	case "accessibility-statement":
		return "Accessibility Statement"
	default:
		return "General"
	}
}

// PageName derives a page name from the file path. Index files take their
// parent directory's name.
func PageName(path string) string {
	name := stem(path)
	if name == "index" {
		return filepath.Base(filepath.Dir(path))
	}
	return name
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
