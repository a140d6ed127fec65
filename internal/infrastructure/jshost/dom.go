package jshost

import (
	"strings"

	"github.com/grafana/sobek"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// installDocument exposes a small DOM: document.title, URL, location,
// getElementById, getElementsByTagName, querySelector("#id"|"tag") and
// element textContent/innerHTML/attributes/style.
func (d *document) installDocument() {
	rt := d.rt
	doc := rt.NewObject()
	d.docObj = doc

	_ = doc.DefineAccessorProperty("title",
		rt.ToValue(func(sobek.FunctionCall) sobek.Value { return rt.ToValue(d.titleText) }),
		rt.ToValue(func(call sobek.FunctionCall) sobek.Value {
			d.titleText = call.Argument(0).String()
			return sobek.Undefined()
		}),
		sobek.FLAG_FALSE, sobek.FLAG_TRUE)
	_ = doc.Set("URL", d.uri)
	_ = doc.Set("readyState", "loading")
	_ = doc.DefineAccessorProperty("body",
		rt.ToValue(func(sobek.FunctionCall) sobek.Value {
			return d.wrapOrNull(findFirst(d.root, "body"))
		}),
		nil, sobek.FLAG_FALSE, sobek.FLAG_TRUE)
	_ = doc.DefineAccessorProperty("head",
		rt.ToValue(func(sobek.FunctionCall) sobek.Value {
			return d.wrapOrNull(findFirst(d.root, "head"))
		}),
		nil, sobek.FLAG_FALSE, sobek.FLAG_TRUE)

	_ = doc.Set("getElementById", func(call sobek.FunctionCall) sobek.Value {
		return d.wrapOrNull(findByID(d.root, call.Argument(0).String()))
	})
	_ = doc.Set("getElementsByTagName", func(call sobek.FunctionCall) sobek.Value {
		return d.wrapAll(findAll(d.root, call.Argument(0).String()))
	})
	_ = doc.Set("querySelector", func(call sobek.FunctionCall) sobek.Value {
		return d.wrapOrNull(querySelector(d.root, call.Argument(0).String()))
	})

	location := rt.NewObject()
	_ = location.Set("href", d.uri)
	_ = location.Set("toString", func(sobek.FunctionCall) sobek.Value { return rt.ToValue(d.uri) })

	_ = rt.Set("document", doc)
	_ = rt.Set("location", location)
}

func (d *document) setReadyState(state string) {
	if d.docObj != nil {
		_ = d.docObj.Set("readyState", state)
	}
}

func (d *document) wrapOrNull(n *html.Node) sobek.Value {
	if n == nil {
		return sobek.Null()
	}
	return d.wrap(n)
}

func (d *document) wrapAll(nodes []*html.Node) sobek.Value {
	vals := make([]any, 0, len(nodes))
	for _, n := range nodes {
		vals = append(vals, d.wrap(n))
	}
	return d.rt.NewArray(vals...)
}

// wrap returns the JS object for n, creating it once per node so identity
// comparisons in page script hold.
func (d *document) wrap(n *html.Node) *sobek.Object {
	if obj, ok := d.elements[n]; ok {
		return obj
	}

	rt := d.rt
	obj := rt.NewObject()
	d.elements[n] = obj

	_ = obj.Set("tagName", strings.ToUpper(n.Data))
	_ = obj.Set("id", attr(n, "id"))
	_ = obj.Set("style", rt.NewObject())

	_ = obj.DefineAccessorProperty("textContent",
		rt.ToValue(func(sobek.FunctionCall) sobek.Value { return rt.ToValue(textContent(n)) }),
		rt.ToValue(func(call sobek.FunctionCall) sobek.Value {
			d.forget(n)
			setText(n, call.Argument(0).String())
			return sobek.Undefined()
		}),
		sobek.FLAG_FALSE, sobek.FLAG_TRUE)

	_ = obj.DefineAccessorProperty("innerHTML",
		rt.ToValue(func(sobek.FunctionCall) sobek.Value { return rt.ToValue(innerHTML(n)) }),
		rt.ToValue(func(call sobek.FunctionCall) sobek.Value {
			nodes, err := html.ParseFragment(strings.NewReader(call.Argument(0).String()), n)
			if err != nil {
				panic(rt.NewTypeError("innerHTML: " + err.Error()))
			}
			d.forget(n)
			removeChildren(n)
			for _, c := range nodes {
				n.AppendChild(c)
			}
			return sobek.Undefined()
		}),
		sobek.FLAG_FALSE, sobek.FLAG_TRUE)

	_ = obj.Set("getAttribute", func(call sobek.FunctionCall) sobek.Value {
		name := call.Argument(0).String()
		for _, a := range n.Attr {
			if a.Key == name {
				return rt.ToValue(a.Val)
			}
		}
		return sobek.Null()
	})
	_ = obj.Set("setAttribute", func(call sobek.FunctionCall) sobek.Value {
		name, val := call.Argument(0).String(), call.Argument(1).String()
		setAttr(n, name, val)
		if name == "id" {
			_ = obj.Set("id", val)
		}
		return sobek.Undefined()
	})
	_ = obj.Set("querySelector", func(call sobek.FunctionCall) sobek.Value {
		return d.wrapOrNull(querySelector(n, call.Argument(0).String()))
	})

	return obj
}

// forget drops cached wrappers for the descendants of n before they are
// replaced.
func (d *document) forget(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		delete(d.elements, c)
		d.forget(c)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

func setText(n *html.Node, text string) {
	removeChildren(n)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func innerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if n == nil {
		return false
	}
	if n.Type == html.ElementNode && visit(n) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if walk(c, visit) {
			return true
		}
	}
	return false
}

func findByID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if attr(n, "id") == id {
			found = n
			return true
		}
		return false
	})
	return found
}

func findFirst(root *html.Node, tag string) *html.Node {
	tag = strings.ToLower(tag)
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Data == tag {
			found = n
			return true
		}
		return false
	})
	return found
}

func findAll(root *html.Node, tag string) []*html.Node {
	tag = strings.ToLower(tag)
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if tag == "*" || n.Data == tag {
			out = append(out, n)
		}
		return false
	})
	return out
}

// querySelector supports "#id" and bare tag selectors only.
func querySelector(root *html.Node, selector string) *html.Node {
	selector = strings.TrimSpace(selector)
	if strings.HasPrefix(selector, "#") {
		return findByID(root, selector[1:])
	}
	return findFirst(root, selector)
}

// inlineScripts returns the source of classic inline <script> elements in
// document order. External and module scripts are skipped.
func inlineScripts(root *html.Node) []string {
	var scripts []string
	walk(root, func(n *html.Node) bool {
		if n.DataAtom != atom.Script {
			return false
		}
		if attr(n, "src") != "" || !isJavaScriptType(attr(n, "type")) {
			return false
		}
		if code := textContent(n); strings.TrimSpace(code) != "" {
			scripts = append(scripts, code)
		}
		return false
	})
	return scripts
}

func isJavaScriptType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "text/javascript", "application/javascript":
		return true
	default:
		return false
	}
}
