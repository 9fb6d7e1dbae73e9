package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"siges/internal/util"
)

const maxBodySnippet = 300

// APIError is a non-2xx answer from the backend. Items holds the structured
// error list when the body carried one.
type APIError struct {
	StatusCode int
	Items      []APIErrorItem
	Body       string
}

type APIErrorItem struct {
	Status textValue    `json:"status"`
	Title  string       `json:"title"`
	Detail textValue    `json:"detail"`
	Source *ErrorSource `json:"source,omitempty"`
}

type ErrorSource struct {
	Pointer []FieldErrors `json:"pointer"`
}

type FieldErrors struct {
	Field  string   `json:"field"`
	Errors []string `json:"errors"`
}

// textValue accepts a JSON string, number or array and keeps a readable
// rendering of it.
type textValue string

func (t *textValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = textValue(s)
		return nil
	}
	*t = textValue(b)
	return nil
}

// Messages renders one line per backend error as
// "[status] title (field: errors) - detail".
func (e *APIError) Messages() []string {
	if len(e.Items) == 0 {
		msg := fmt.Sprintf("[%d] %s", e.StatusCode, http.StatusText(e.StatusCode))
		if e.Body != "" {
			msg += " - " + e.Body
		}
		return []string{msg}
	}

	out := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		out = append(out, item.String(e.StatusCode))
	}
	return out
}

func (e *APIError) Error() string {
	return strings.Join(e.Messages(), "; ")
}

func (i APIErrorItem) String(fallbackStatus int) string {
	status := strings.TrimSpace(string(i.Status))
	if status == "" {
		status = fmt.Sprint(fallbackStatus)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", status, strings.TrimSpace(i.Title))
	if i.Source != nil && len(i.Source.Pointer) > 0 {
		fields := make([]string, 0, len(i.Source.Pointer))
		for _, p := range i.Source.Pointer {
			fields = append(fields, fmt.Sprintf("%s: %s", p.Field, strings.Join(p.Errors, ", ")))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(fields, "; "))
	}
	if detail := formatDetail(string(i.Detail)); detail != "" {
		b.WriteString(" - ")
		b.WriteString(detail)
	}
	return b.String()
}

// formatDetail expands a detail that is itself a JSON array into a
// comma separated list.
func formatDetail(detail string) string {
	detail = strings.TrimSpace(detail)
	if !strings.HasPrefix(detail, "[") {
		return detail
	}
	var items []any
	if err := json.Unmarshal([]byte(detail), &items); err != nil {
		return detail
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			parts = append(parts, v)
		default:
			blob, _ := json.Marshal(v)
			parts = append(parts, string(blob))
		}
	}
	return strings.Join(parts, ", ")
}

// parseAPIError builds an APIError from a failed response body. JSON bodies
// are read for the errors list; HTML pages from proxies are reduced to text.
func parseAPIError(status int, contentType string, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	trimmed := bytes.TrimSpace(body)

	var envelope struct {
		Errors  []APIErrorItem `json:"errors"`
		Message string         `json:"message"`
	}
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &envelope) == nil {
		apiErr.Items = envelope.Errors
		apiErr.Body = snippet(envelope.Message)
		if len(apiErr.Items) == 0 && apiErr.Body == "" {
			apiErr.Body = snippet(string(trimmed))
		}
		return apiErr
	}

	if strings.Contains(contentType, "html") || bytes.HasPrefix(trimmed, []byte("<")) {
		apiErr.Body = htmlSummary(trimmed)
		return apiErr
	}

	apiErr.Body = snippet(string(trimmed))
	return apiErr
}

func htmlSummary(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return snippet(string(body))
	}
	title := util.CollapseSpaces(doc.Find("title").First().Text())

	var parts []string
	doc.Find("body h1, body h2, body h3, body p, body pre, body li").Each(func(_ int, s *goquery.Selection) {
		if t := util.CollapseSpaces(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := strings.Join(parts, " ")
	if text == "" {
		text = util.CollapseSpaces(doc.Find("body").Text())
	}
	switch {
	case title != "" && text != "" && !strings.HasPrefix(text, title):
		return snippet(title + ": " + text)
	case text != "":
		return snippet(text)
	default:
		return snippet(title)
	}
}

func snippet(s string) string {
	s = util.CollapseSpaces(s)
	if r := []rune(s); len(r) > maxBodySnippet {
		return string(r[:maxBodySnippet]) + "..."
	}
	return s
}
