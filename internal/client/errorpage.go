package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxErrorMessage = 512

// APIError is a non-success response from the engine.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server's explanation, reduced to plain text.
	Message string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// errorMessage reduces an error body to one line of text.
//
// JSON bodies supply their Message/message/error/title field. HTML pages
// (IIS, nginx and ASP.NET yellow screens) are reduced to title plus body text.
// Anything else is used verbatim. The result is capped at 512 bytes.
func errorMessage(contentType string, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	mt, _, _ := mime.ParseMediaType(contentType)

	var msg string
	switch {
	case strings.HasSuffix(mt, "json") || (mt == "" && body[0] == '{'):
		msg = jsonMessage(body)
	case mt == "text/html" || bytes.HasPrefix(bytes.ToLower(body), []byte("<!doctype html")) || bytes.HasPrefix(bytes.ToLower(body), []byte("<html")):
		msg = htmlMessage(body)
	}
	if msg == "" {
		msg = string(body)
	}
	return truncate(collapseSpace(msg), maxErrorMessage)
}

func jsonMessage(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	for _, k := range []string{"Message", "message", "error", "title", "detail"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func htmlMessage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head > meta").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := collapseSpace(doc.Find("body").Text())
	switch {
	case title == "":
		return text
	case text == "" || text == title:
		return title
	case strings.HasPrefix(text, title):
		return text
	default:
		return title + ": " + text
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
