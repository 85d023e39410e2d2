package indexer

import (
	"bytes"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ziadkadry99/ctxpack/internal/walker"
)

// ExtractTitle returns the first heading of a markdown document, or a title
// derived from the file name for other formats and for markdown without a
// heading.
func ExtractTitle(content []byte, format walker.Format, relPath string) string {
	if format == walker.FormatMarkdown {
		if title := firstHeading(stripFrontMatter(content)); title != "" {
			return title
		}
	}
	return titleFromPath(relPath)
}

func firstHeading(source []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		var b bytes.Buffer
		inlineText(h, source, &b)
		title = strings.TrimSpace(b.String())
		if title == "" {
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkStop, nil
	})
	return title
}

func inlineText(n ast.Node, source []byte, b *bytes.Buffer) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			inlineText(c, source, b)
		}
	}
}

// stripFrontMatter drops a leading YAML front matter block, which the
// CommonMark parser would otherwise read as a setext heading.
func stripFrontMatter(content []byte) []byte {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return content
	}
	rest := content[bytes.IndexByte(content, '\n')+1:]
	for offset := 0; offset < len(rest); {
		end := bytes.IndexByte(rest[offset:], '\n')
		line := rest[offset:]
		if end >= 0 {
			line = rest[offset : offset+end]
		}
		if strings.TrimSpace(string(line)) == "---" {
			if end < 0 {
				return nil
			}
			return rest[offset+end+1:]
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return content
}

func titleFromPath(relPath string) string {
	base := path.Base(relPath)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return strings.TrimSpace(base)
}
