// Package markup renders operator-authored markdown into sanitized HTML.
// It is used for park waiver text, which administrators edit as markdown
// and the public permit pages display as HTML.
package markup

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// The goldmark instance and sanitizer policy are configured once and
// shared. Both are safe for concurrent use; parsing creates per-call
// state internally.
var (
	renderOnce sync.Once
	md         goldmark.Markdown
	policy     *bluemonday.Policy
)

func setup() {
	md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
	)
	policy = bluemonday.UGCPolicy()
}

// Render converts markdown source to sanitized HTML. Raw HTML embedded
// in the source survives goldmark only as escaped text, and the
// sanitizer strips anything outside the user-generated-content policy,
// so script injection through waiver text is not possible.
func Render(source string) (string, error) {
	renderOnce.Do(setup)

	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}
