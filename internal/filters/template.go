package filters

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/rules"
)

// runTemplate renders the input as a text/template.
//
// Data available to the template:
//
//	.content  the representation content (only while applying a layout)
//	.item     the item's attributes plus "identifier"
//	.rep      the representation name
//	.config   the site configuration
//	.params   the filter params
//
// Functions that read other items go through dependency-tracked views:
//
//	content "/b.md"                  compiled content, default rep and snapshot
//	snapshot "/b.md" "rep" "name"    compiled content at a named snapshot
//	path "/b.md"                     first write target of the default rep
//	attr "/b.md" "title"             an attribute of another item
//	matching "/blog/*"               identifiers matching a pattern
//
// Code snippets are parsed as associated templates named after the snippet,
// so {{template "lib/nav.tmpl" .}} works from any item or layout.
//
// Params: {"missing": "error"} makes missing map keys fail the render.
func runTemplate(src string, params ir.IRObject, assigns Assigns) (string, error) {
	name := "content"
	if assigns.Layout != nil {
		name = assigns.Layout.Identifier.String()
	} else if assigns.Item != nil {
		name = assigns.Item.Identifier().String()
	}

	tmpl := template.New(name).Funcs(templateFuncs(assigns))
	if params.String("missing") == "error" {
		tmpl = tmpl.Option("missingkey=error")
	}
	for _, cs := range assigns.Snippets {
		if _, err := tmpl.New(cs.Name).Parse(cs.Data); err != nil {
			return "", fmt.Errorf("parse snippet %s: %w", cs.Name, err)
		}
	}
	tmpl, err := tmpl.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData(params, assigns)); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

func templateData(params ir.IRObject, assigns Assigns) map[string]any {
	data := map[string]any{
		"rep":    assigns.RepName,
		"config": ir.ToAny(assigns.Config.Clone()),
		"params": ir.ToAny(params.Clone()),
	}
	if assigns.Layout != nil {
		data["content"] = assigns.Content.Text
	}
	if assigns.Item != nil {
		attrs := ir.ToAny(assigns.Attributes.Clone()).(map[string]any)
		attrs["identifier"] = assigns.Item.Identifier().String()
		data["item"] = attrs
	}
	return data
}

func templateFuncs(assigns Assigns) template.FuncMap {
	find := func(id string) (rules.ItemView, error) {
		if assigns.Items == nil {
			return nil, fmt.Errorf("no items available")
		}
		view, ok := assigns.Items.Find(id)
		if !ok {
			return nil, fmt.Errorf("no item with identifier %s", id)
		}
		return view, nil
	}

	return template.FuncMap{
		"content": func(id string) (string, error) {
			view, err := find(id)
			if err != nil {
				return "", err
			}
			return view.CompiledContent("", "")
		},
		"snapshot": func(id, rep, snapshot string) (string, error) {
			view, err := find(id)
			if err != nil {
				return "", err
			}
			return view.CompiledContent(rep, snapshot)
		},
		"path": func(id string) (string, error) {
			view, err := find(id)
			if err != nil {
				return "", err
			}
			return view.Path("")
		},
		"attr": func(id, key string) (any, error) {
			view, err := find(id)
			if err != nil {
				return nil, err
			}
			v, ok := view.Attr(key)
			if !ok {
				return "", nil
			}
			return ir.ToAny(v), nil
		},
		"matching": func(pattern string) []string {
			if assigns.Items == nil {
				return nil
			}
			views := assigns.Items.Matching(rules.NormalizePattern(pattern))
			ids := make([]string, len(views))
			for i, v := range views {
				ids[i] = v.Identifier().String()
			}
			return ids
		},
	}
}
