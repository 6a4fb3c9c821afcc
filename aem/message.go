package aem

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxMessageLen = 500

// ResponseMessage extracts a human readable failure message from a response
// body. The Sling POST servlet answers either with an HTML status page
// (#Status, #Message) or, when JSON is accepted, with a status object.
func ResponseMessage(resp *Response) string {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return ""
	}
	if body[0] == '{' {
		if msg := jsonMessage(body); msg != "" {
			return truncate(msg)
		}
	}
	if looksLikeHTML(resp, body) {
		if msg := slingHTMLMessage(body); msg != "" {
			return truncate(msg)
		}
	}
	return truncate(string(body))
}

func jsonMessage(body []byte) string {
	var doc struct {
		StatusMessage string `json:"status.message"`
		Message       string `json:"message"`
		Title         string `json:"title"`
		Error         any    `json:"error"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	switch e := doc.Error.(type) {
	case map[string]any:
		if m, ok := e["message"].(string); ok && m != "" {
			return m
		}
	case string:
		if e != "" {
			return e
		}
	}
	for _, s := range []string{doc.StatusMessage, doc.Message, doc.Title} {
		if s != "" {
			return s
		}
	}
	return ""
}

func looksLikeHTML(resp *Response, body []byte) bool {
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "html") {
		return true
	}
	return body[0] == '<'
}

// slingHTMLMessage reads the #Message cell of a Sling status page. Without
// one it reports the #Status code together with the page title.
func slingHTMLMessage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if msg := cellText(doc, "#Message"); msg != "" {
		return msg
	}
	title := cellText(doc, "title")
	switch status := slingStatus(doc); {
	case status != "" && title != "":
		return "status " + status + ": " + title
	case status != "":
		return "status " + status
	}
	return title
}

// slingStatus returns the #Status value of a Sling status page, or "".
func slingStatus(doc *goquery.Document) string {
	return cellText(doc, "#Status")
}

func cellText(doc *goquery.Document, selector string) string {
	return strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
}

// truncate caps s at maxMessageLen bytes without splitting a UTF-8 sequence.
func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
