package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"boardsync/internal/model"
	"boardsync/internal/store"
)

// Raw HTML in descriptions is escaped: html.WithUnsafe is never set.
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

func renderMarkdownHTML(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return template.HTML("")
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(b.String())
}

// handleDescription serves an item's markdown description as an HTML
// fragment. Items without a description get an empty 200.
func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	snap, err := s.board.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := pathID(r)
	it, ok := snap.FindItem(id)
	if !ok {
		s.writeError(w, r, store.NotFoundError{Kind: model.KindItem, ID: id})
		return
	}
	var body template.HTML
	if it.Description != nil {
		body = renderMarkdownHTML(*it.Description)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
