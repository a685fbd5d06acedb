// Package render projects stored page documents into a read-only view.
// Nothing in this package writes to the store.
package render

import (
	"context"
	"errors"
	"html/template"
	"io"

	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/sirupsen/logrus"
)

// ViewState distinguishes the three things a page view can show.
type ViewState string

const (
	StateLoading ViewState = "loading"
	StateEmpty   ViewState = "empty"
	StateReady   ViewState = "ready"
)

// Element is the visual element a block is drawn as.
type Element string

const (
	ElementH1  Element = "h1"
	ElementH2  Element = "h2"
	ElementH3  Element = "h3"
	ElementP   Element = "p"
	ElementImg Element = "img"
)

type (
	// Node is one rendered block.
	Node struct {
		BlockID string  `json:"blockId"`
		Element Element `json:"element"`
		Text    string  `json:"text,omitempty"`
		Src     string  `json:"src,omitempty"`
	}

	// View is the projection of a page. The zero value is the loading state.
	View struct {
		PageID string    `json:"pageId"`
		State  ViewState `json:"state"`
		Nodes  []Node    `json:"nodes"`
	}
)

// Loading is what a caller shows before Load returns.
func Loading(pageID string) View {
	return View{PageID: pageID, State: StateLoading}
}

// Project turns a document into a view. A nil document or one without blocks
// is the empty state.
func Project(pageID string, doc *core.Document) View {
	v := View{PageID: pageID, State: StateEmpty, Nodes: []Node{}}
	if doc == nil || len(doc.Blocks) == 0 {
		return v
	}

	v.State = StateReady
	for _, b := range doc.Blocks {
		if n, ok := projectBlock(b); ok {
			v.Nodes = append(v.Nodes, n)
		}
	}
	return v
}

func projectBlock(b core.Block) (Node, bool) {
	n := Node{BlockID: b.ID}
	switch b.Type {
	case core.BlockHeading1:
		n.Element, n.Text = ElementH1, b.Content
	case core.BlockHeading2:
		n.Element, n.Text = ElementH2, b.Content
	case core.BlockHeading3:
		n.Element, n.Text = ElementH3, b.Content
	case core.BlockParagraph:
		n.Element, n.Text = ElementP, b.Content
	case core.BlockImage:
		if b.Content == "" {
			return Node{}, false
		}
		n.Element, n.Src = ElementImg, b.Content
	default:
		return Node{}, false
	}
	return n, true
}

// Renderer loads pages for display.
type Renderer struct {
	store core.PageStore
}

func NewRenderer(store core.PageStore) *Renderer {
	return &Renderer{store: store}
}

// Load fetches pageID and projects it. Store failures are returned as
// *core.LoadFailure; an absent page is the empty view, not an error.
func (r *Renderer) Load(ctx context.Context, pageID string) (View, error) {
	doc, err := r.store.GetPage(ctx, pageID)
	if errors.Is(err, core.ErrNotFound) {
		return Project(pageID, nil), nil
	}
	if err != nil {
		logrus.WithError(err).WithField("page_id", pageID).Error("Failed to load page for rendering")
		return View{PageID: pageID}, &core.LoadFailure{PageID: pageID, Err: err}
	}
	return Project(pageID, doc), nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<article class="page" data-page="{{.PageID}}">
{{- if eq .State "loading"}}
<p class="page-loading">Loading…</p>
{{- else if eq .State "empty"}}
<p class="page-empty">This page has no content yet.</p>
{{- else}}
{{- range .Nodes}}
{{- if eq .Element "h1"}}
<h1>{{.Text}}</h1>
{{- else if eq .Element "h2"}}
<h2>{{.Text}}</h2>
{{- else if eq .Element "h3"}}
<h3>{{.Text}}</h3>
{{- else if eq .Element "p"}}
<p>{{.Text}}</p>
{{- else if eq .Element "img"}}
<img src="{{.Src}}" alt="">
{{- end}}
{{- end}}
{{- end}}
</article>
`))

// HTML writes the view as an HTML fragment. Text and URLs are escaped.
func HTML(w io.Writer, v View) error {
	if v.State == "" {
		v.State = StateLoading
	}
	return pageTemplate.Execute(w, v)
}
