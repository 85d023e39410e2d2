package walker

import (
	"path/filepath"
	"strings"
)

// Format classifies a document file.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatOther    Format = "other"
)

// DocumentFormats are the formats indexed by default.
var DocumentFormats = []Format{FormatMarkdown, FormatText}

var formatByExt = map[string]Format{
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".mdx":      FormatMarkdown,
	".txt":      FormatText,
	".rst":      FormatText,
	".adoc":     FormatText,
	".org":      FormatText,
}

// DetectFormat returns the document format implied by a file name.
func DetectFormat(name string) Format {
	if f, ok := formatByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return f
	}
	return FormatOther
}
