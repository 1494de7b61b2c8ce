package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/usererr"
	"github.com/JonMunkholm/editgrid/internal/view"
)

// htmlWriter writes markup and keeps the first error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(parts ...string) {
	for _, s := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, s)
	}
}

// text writes s escaped for element content and attribute values.
func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) render(ctx context.Context, c templ.Component) {
	if h.err == nil {
		h.err = c.Render(ctx, h.w)
	}
}

// Layout wraps body in the page chrome.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`)
		h.text(title)
		h.raw(` · editgrid</title>`,
			`<link rel="stylesheet" href="/static/app.css">`,
			`<script src="/static/app.js" defer></script>`,
			`</head><body><header class="topbar"><a href="/">editgrid</a></header>`,
			`<div id="flash" class="flash" hidden></div><main>`)
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

// ErrorAlert renders a user message with its action and code.
func ErrorAlert(msg usererr.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="alert" role="alert"><strong>`)
		h.text(msg.Message)
		h.raw(`</strong>`)
		if msg.Action != "" {
			h.raw(`<p>`)
			h.text(msg.Action)
			h.raw(`</p>`)
		}
		if msg.Code != "" {
			h.raw(`<small>Code: `)
			h.text(msg.Code)
			h.raw(`</small>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// ErrorPage is a full page around ErrorAlert.
func ErrorPage(msg usererr.UserMessage) templ.Component {
	return Layout("Error", ErrorAlert(msg))
}

// IndexPage lists the tables by group.
func IndexPage(tables []TableInfo) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<h1>Tables</h1>`)
		if len(tables) == 0 {
			h.raw(`<p class="muted">No tables are defined.</p>`)
			return h.err
		}

		group := "\x00"
		for _, t := range tables {
			if t.Group != group {
				if group != "\x00" {
					h.raw(`</ul>`)
				}
				group = t.Group
				if group != "" {
					h.raw(`<h2>`)
					h.text(group)
					h.raw(`</h2>`)
				}
				h.raw(`<ul class="tables">`)
			}
			h.raw(`<li><a href="/tables/`)
			h.text(url.PathEscape(t.Key))
			h.raw(`">`)
			h.text(t.Label)
			h.raw(`</a> <span class="muted">`)
			h.text(strconv.Itoa(t.RowCount))
			h.raw(` rows</span></li>`)
		}
		h.raw(`</ul>`)
		return h.err
	})
}

// TablePageData is everything the table page renders.
type TablePageData struct {
	Info      TableInfo
	View      view.Result
	State     table.State
	Query     url.Values
	Selected  []table.Key
	PageError string
	Realtime  bool
}

// TablePage renders an editable table with its toolbar and pager.
func TablePage(d TablePageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		p := tablePage{h: h, d: d, api: "/api/tables/" + url.PathEscape(d.Info.Key)}
		p.selected = make(map[table.Key]bool, len(d.Selected))
		for _, k := range d.Selected {
			p.selected[k] = true
		}
		p.editing = make(map[table.Key]bool, len(d.State.Editing))
		for _, k := range d.State.Editing {
			p.editing[k] = true
		}

		h.raw(`<section class="grid" data-table="`)
		h.text(d.Info.Key)
		h.raw(`"`)
		if d.Realtime {
			h.raw(` data-feed="/ws/`)
			h.text(url.PathEscape(d.Info.Key))
			h.raw(`"`)
		}
		h.raw(`><h1>`)
		h.text(d.Info.Label)
		h.raw(`</h1>`)

		if d.PageError != "" {
			h.raw(`<div class="alert">`)
			h.text(d.PageError)
			h.raw(`</div>`)
		}
		p.toolbar()
		p.grid()
		p.pager()
		h.raw(`</section>`)
		return h.err
	})
}

type tablePage struct {
	h        *htmlWriter
	d        TablePageData
	api      string
	selected map[table.Key]bool
	editing  map[table.Key]bool
}

// button renders an element that app.js turns into an API call.
func (p *tablePage) button(label, method, path string, body any, class string) {
	h := p.h
	h.raw(`<button type="button" data-action="`)
	h.text(method + " " + p.api + path)
	h.raw(`"`)
	if body != nil {
		b, _ := json.Marshal(body)
		h.raw(` data-body="`)
		h.text(string(b))
		h.raw(`"`)
	}
	if class != "" {
		h.raw(` class="`)
		h.text(class)
		h.raw(`"`)
	}
	h.raw(`>`)
	h.text(label)
	h.raw(`</button>`)
}

func (p *tablePage) opError(op string) {
	if st, ok := p.d.State.Operations[op]; ok && st.Error != "" {
		p.h.raw(`<div class="op-error" role="alert">`)
		p.h.text(st.Error)
		p.h.raw(`</div>`)
	}
}

func (p *tablePage) toolbar() {
	h, d := p.h, p.d
	tb := d.State.Toolbar

	h.raw(`<div class="toolbar">`)
	if d.Info.Features.Filtering {
		h.raw(`<form method="get" class="search"><input type="search" name="search" placeholder="Search…" value="`)
		h.text(d.Query.Get("search"))
		h.raw(`">`)
		for _, k := range []string{"sort", "dir"} {
			if v := d.Query.Get(k); v != "" {
				h.raw(`<input type="hidden" name="`, k, `" value="`)
				h.text(v)
				h.raw(`">`)
			}
		}
		h.raw(`<button type="submit">Search</button></form>`)
	}

	if tb.ShowEditAll {
		p.button("Edit All", "POST", "/edit-all", nil, "")
	}
	if tb.ShowSaveAll {
		cls := "primary"
		if tb.Busy {
			cls += " busy"
		}
		p.button("Save All", "POST", "/save-all", nil, cls)
		p.button("Cancel", "POST", "/cancel-all", nil, "")
	}
	if tb.ShowAddRow {
		p.button("Add Row", "POST", "/draft", nil, "")
	}
	p.button("Reload", "POST", "/reload", nil, "")

	h.raw(`<a class="export" href="`)
	h.text(p.api + "/export?" + d.Query.Encode())
	h.raw(`">Export xlsx</a> <a class="export" href="`)
	q := cloneValues(d.Query)
	q.Set("format", "csv")
	h.text(p.api + "/export?" + q.Encode())
	h.raw(`">Export csv</a>`)

	if d.Info.Features.RowSelection {
		h.raw(`<span class="muted">`)
		h.text(strconv.Itoa(len(d.Selected)))
		h.raw(` selected</span>`)
	}
	h.raw(`</div>`)
	p.opError(table.OpAll)
}

func (p *tablePage) grid() {
	h, d := p.h, p.d
	cols := d.View.Columns

	h.raw(`<table><thead><tr>`)
	if d.Info.Features.RowSelection {
		keys := make([]table.Key, len(d.View.Items))
		all := len(keys) > 0
		for i, it := range d.View.Items {
			keys[i] = it.Key
			all = all && p.selected[it.Key]
		}
		b, _ := json.Marshal(keys)
		h.raw(`<th><input type="checkbox" data-select-page="`)
		h.text(string(b))
		h.raw(`"`)
		if all {
			h.raw(` checked`)
		}
		h.raw(`></th>`)
	}
	for _, c := range cols {
		h.raw(`<th>`)
		if d.Info.Features.Sorting && c.IsSortable() {
			h.raw(`<a href="?`)
			h.text(p.sortQuery(c.ID))
			h.raw(`">`)
			h.text(headerOf(c))
			h.raw(p.sortMark(c.ID), `</a>`)
		} else {
			h.text(headerOf(c))
		}
		h.raw(`</th>`)
	}
	if d.Info.Features.Editing {
		h.raw(`<th></th>`)
	}
	h.raw(`</tr></thead><tbody>`)

	if d.State.Adding {
		p.draftRow(cols)
	}
	for _, it := range d.View.Items {
		p.row(cols, it)
	}
	if len(d.View.Items) == 0 && !d.State.Adding {
		h.raw(`<tr><td class="muted" colspan="`, strconv.Itoa(len(cols)+2), `">No rows</td></tr>`)
	}
	h.raw(`</tbody></table>`)
}

func (p *tablePage) row(cols []schema.Column, it view.Item) {
	h, d := p.h, p.d
	editing := p.editing[it.Key]
	rowPath := "/rows/" + url.PathEscape(string(it.Key))

	h.raw(`<tr`)
	if editing {
		h.raw(` class="editing"`)
	}
	h.raw(`>`)
	if d.Info.Features.RowSelection {
		h.raw(`<td><input type="checkbox" data-select-key="`)
		h.text(string(it.Key))
		h.raw(`"`)
		if p.selected[it.Key] {
			h.raw(` checked`)
		}
		h.raw(`></td>`)
	}
	for _, c := range cols {
		h.raw(`<td>`)
		if editing && !c.ReadOnly {
			p.input(c, it.Row[c.ID], p.api+rowPath)
		} else {
			h.text(c.Label(it.Row[c.ID]))
		}
		h.raw(`</td>`)
	}
	if d.Info.Features.Editing {
		h.raw(`<td class="actions">`)
		if editing {
			p.button("Save", "POST", rowPath+"/save", nil, "primary")
			p.button("Cancel", "POST", rowPath+"/cancel", nil, "")
		} else {
			p.button("Edit", "POST", rowPath+"/edit", nil, "")
			p.button("Delete", "DELETE", rowPath, nil, "danger")
		}
		p.opError(table.RowOp(it.Key))
		p.opError(table.DeleteOp(it.Key))
		h.raw(`</td>`)
	}
	h.raw(`</tr>`)
}

func (p *tablePage) draftRow(cols []schema.Column) {
	h, d := p.h, p.d
	h.raw(`<tr class="draft">`)
	if d.Info.Features.RowSelection {
		h.raw(`<td></td>`)
	}
	for _, c := range cols {
		h.raw(`<td>`)
		if !c.ReadOnly {
			p.input(c, d.State.Draft[c.ID], p.api+"/draft")
		}
		h.raw(`</td>`)
	}
	h.raw(`<td class="actions">`)
	p.button("Save", "POST", "/draft/commit", nil, "primary")
	p.button("Cancel", "DELETE", "/draft", nil, "")
	p.opError(table.OpNewRow)
	h.raw(`</td></tr>`)
}

// input renders an editor for one cell. app.js sends changes as
// PATCH target {"field", "value"}.
func (p *tablePage) input(c schema.Column, v any, target string) {
	h := p.h
	common := func() {
		h.raw(` data-patch="`)
		h.text(target)
		h.raw(`" data-field="`)
		h.text(c.ID)
		h.raw(`"`)
		if c.Required {
			h.raw(` required`)
		}
	}
	value := schema.Format(v)

	switch c.Type {
	case schema.CellBoolean:
		h.raw(`<input type="checkbox"`)
		common()
		if b, ok := v.(bool); ok && b {
			h.raw(` checked`)
		}
		h.raw(`>`)
	case schema.CellSelect:
		h.raw(`<select`)
		common()
		h.raw(`>`)
		if !c.Required {
			h.raw(`<option value=""></option>`)
		}
		for _, o := range c.Options {
			h.raw(`<option value="`)
			h.text(o.Value)
			h.raw(`"`)
			if o.Value == value {
				h.raw(` selected`)
			}
			h.raw(`>`)
			h.text(c.Label(o.Value))
			h.raw(`</option>`)
		}
		h.raw(`</select>`)
	case schema.CellCombobox:
		list := "opts-" + p.d.Info.Key + "-" + c.ID
		h.raw(`<input type="text" list="`)
		h.text(list)
		h.raw(`" value="`)
		h.text(value)
		h.raw(`"`)
		common()
		h.raw(`><datalist id="`)
		h.text(list)
		h.raw(`">`)
		for _, o := range c.Options {
			h.raw(`<option value="`)
			h.text(o.Value)
			h.raw(`">`)
			h.text(c.Label(o.Value))
			h.raw(`</option>`)
		}
		h.raw(`</datalist>`)
	case schema.CellNumber:
		h.raw(`<input type="number" step="any" value="`)
		h.text(value)
		h.raw(`"`)
		common()
		h.raw(`>`)
	default:
		h.raw(`<input type="text" value="`)
		h.text(value)
		h.raw(`"`)
		common()
		h.raw(`>`)
	}
}

func (p *tablePage) pager() {
	h, d := p.h, p.d
	if !d.Info.Features.Pagination {
		h.raw(`<p class="muted">`)
		h.text(fmt.Sprintf("%d rows", d.View.Total))
		h.raw(`</p>`)
		return
	}

	pageCount := max(d.View.PageCount, 1)
	h.raw(`<nav class="pager">`)
	p.button("«", "POST", "/pagination", map[string]string{"action": "first"}, "")
	p.button("‹", "POST", "/pagination", map[string]string{"action": "prev"}, "")
	h.raw(`<span>`)
	h.text(fmt.Sprintf("Page %d of %d · %d rows", d.View.PageIndex+1, pageCount, d.View.Total))
	h.raw(`</span>`)
	p.button("›", "POST", "/pagination", map[string]string{"action": "next"}, "")
	p.button("»", "POST", "/pagination", map[string]int{"pageIndex": pageCount - 1}, "")

	h.raw(`<select data-page-size="`)
	h.text(p.api + "/pagination")
	h.raw(`">`)
	for _, n := range d.State.PageSizeOptions {
		s := strconv.Itoa(n)
		h.raw(`<option value="`, s, `"`)
		if n == d.State.Pagination.PageSize {
			h.raw(` selected`)
		}
		h.raw(`>`, s, ` / page</option>`)
	}
	h.raw(`</select></nav>`)
}

// sortQuery cycles col through ascending, descending and unsorted, keeping
// the other parameters.
func (p *tablePage) sortQuery(col string) string {
	q := cloneValues(p.d.Query)
	switch {
	case q.Get("sort") != col:
		q.Set("sort", col)
		q.Set("dir", "asc")
	case q.Get("dir") != "desc":
		q.Set("dir", "desc")
	default:
		q.Del("sort")
		q.Del("dir")
	}
	return q.Encode()
}

func (p *tablePage) sortMark(col string) string {
	if p.d.Query.Get("sort") != col {
		return ""
	}
	if p.d.Query.Get("dir") == "desc" {
		return " ▼"
	}
	return " ▲"
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		if strings.HasPrefix(k, "page") {
			continue
		}
		out[k] = append([]string(nil), vals...)
	}
	return out
}
