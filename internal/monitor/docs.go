package monitor

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/yuin/goldmark"
)

//go:embed docs/policy.md
var policyMarkdown []byte

const docsPageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>bupcask GC policy</title></head>
<body>
%s
</body>
</html>
`

// handleDocs renders the embedded GC policy document as HTML. The teacher
// embeds a whole built web/ SPA via assets.go; bupcask has no SPA to serve,
// so the analogous embedded asset is this one policy page instead.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := goldmark.Convert(policyMarkdown, &buf); err != nil {
		s.logger.Error("failed to render GC policy markdown", "err", err)
		http.Error(w, "failed to render documentation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, docsPageTemplate, buf.String())
}
