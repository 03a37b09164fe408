// Package filter implements the XML Filter Engine of spec §4.D: split one
// input document into retained/excluded siblings by evaluating per-entry
// criteria against the Reference List Store. Grounded on
// github.com/antchfx/xmlquery and github.com/antchfx/xpath, the pair used
// by the manifests referenced in the retrieved pack for XPath-driven XML
// processing, mirroring the original XMLProcessor.hpp.
package filter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/TransportDebuger/filterservice/internal/config"
	"github.com/TransportDebuger/filterservice/internal/fserrors"
	"github.com/TransportDebuger/filterservice/internal/reflist"
)

// Result is the outcome of processing one input document (§4.D).
type Result struct {
	RetainedPath string
	ExcludedPath string
	RetainedN    int
	ExcludedN    int
}

// Engine evaluates one FilterSpec against the Reference List Store.
type Engine struct {
	spec  config.FilterSpec
	store *reflist.Store
}

// New builds an Engine bound to the given spec and reference list store.
func New(spec config.FilterSpec, store *reflist.Store) *Engine {
	return &Engine{spec: spec, store: store}
}

// Process reads the document at path, splits its entries into a retained
// and an excluded document, and writes whichever of the two is non-empty
// (§4.D Output).
func (e *Engine) Process(path, filteredTemplate, excludedTemplate, retainedDir, excludedDir string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fserrors.New(fserrors.KindXML, "filter.process", path, err)
	}
	defer f.Close()

	doc, err := xmlquery.Parse(f)
	if err != nil {
		return Result{}, fserrors.New(fserrors.KindXML, "filter.process", path, err)
	}

	root := xmlquery.FindOne(doc, "/*")
	if root == nil {
		return Result{}, fserrors.New(fserrors.KindXML, "filter.process", path, fmt.Errorf("no root element"))
	}

	ns := e.resolveNamespaces(root)

	entries, err := e.identifyEntries(root, ns)
	if err != nil {
		return Result{}, fserrors.New(fserrors.KindXML, "filter.process", path, err)
	}

	retainedRoot := cloneRootShallow(root)
	excludedRoot := cloneRootShallow(root)
	retainedN, excludedN := 0, 0

	for _, entry := range entries {
		excluded, err := e.evaluate(entry, ns)
		if err != nil {
			return Result{}, fserrors.New(fserrors.KindXML, "filter.process", path, err)
		}
		if excluded {
			appendChild(excludedRoot, entry)
			excludedN++
		} else {
			appendChild(retainedRoot, entry)
			retainedN++
		}
	}

	base := filepath.Base(path)
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	res := Result{RetainedN: retainedN, ExcludedN: excludedN}

	if retainedN > 0 {
		name := applyTemplate(filteredTemplate, base, ext)
		out := filepath.Join(retainedDir, name)
		if err := writeXML(out, retainedRoot); err != nil {
			return Result{}, fserrors.New(fserrors.KindXML, "filter.process", out, err)
		}
		res.RetainedPath = out
	}
	if excludedN > 0 {
		name := applyTemplate(excludedTemplate, base, ext)
		out := filepath.Join(excludedDir, name)
		if err := writeXML(out, excludedRoot); err != nil {
			return Result{}, fserrors.New(fserrors.KindXML, "filter.process", out, err)
		}
		res.ExcludedPath = out
	}
	return res, nil
}

// evaluate returns true if the entry's combined criteria result is true
// (i.e. the entry belongs to the excluded document, per §4.D Output).
func (e *Engine) evaluate(entry *xmlquery.Node, ns map[string]string) (bool, error) {
	results := make([]bool, len(e.spec.Criteria))
	for i, crit := range e.spec.Criteria {
		ok, err := e.evalCriterion(entry, crit, ns)
		if err != nil {
			return false, err
		}
		results[i] = ok
	}
	return combine(e.spec.Operator, e.spec.Threshold, e.spec.Criteria, results), nil
}

func (e *Engine) evalCriterion(entry *xmlquery.Node, crit config.FilterCriterion, ns map[string]string) (bool, error) {
	expr := rewriteXPath(crit.XPath)
	nodes, err := selectAll(entry, expr, ns)
	if err != nil {
		return false, fmt.Errorf("criterion xpath %q: %w", crit.XPath, err)
	}
	for _, n := range nodes {
		val, ok := extractValue(n, crit.Attribute)
		if !ok {
			continue
		}
		found, err := e.store.Contains(crit.CsvColumn, val)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

func extractValue(n *xmlquery.Node, attribute string) (string, bool) {
	if attribute != "" {
		for _, a := range n.Attr {
			if a.Name.Local == attribute {
				return a.Value, true
			}
		}
		return "", false
	}
	return strings.TrimSpace(n.InnerText()), true
}

// combine applies the logic operator over the per-criterion boolean vector
// (§4.D). Unknown operators evaluate to false; no error is logged for them.
func combine(op config.Operator, threshold float64, criteria []config.FilterCriterion, r []bool) bool {
	if len(r) == 0 {
		return false
	}
	switch op {
	case config.OperatorAND:
		for _, v := range r {
			if !v {
				return false
			}
		}
		return true
	case config.OperatorOR:
		for _, v := range r {
			if v {
				return true
			}
		}
		return false
	case config.OperatorMAJORITY:
		count := 0
		for _, v := range r {
			if v {
				count++
			}
		}
		return count > len(r)/2
	case config.OperatorWEIGHTED:
		var num, den float64
		for i, v := range r {
			w := criteria[i].Weight
			den += w
			if v {
				num += w
			}
		}
		if den == 0 {
			return false
		}
		return num/den >= threshold
	default:
		return false
	}
}

// rewriteXPath applies §4.D's entry-relative rewriting rules: a leading
// "//" or "/" becomes "./", and a leading "entry/", "record/" or "item/"
// root segment is stripped.
func rewriteXPath(expr string) string {
	switch {
	case strings.HasPrefix(expr, "//"):
		expr = "." + expr[1:]
	case strings.HasPrefix(expr, "/"):
		expr = "." + expr
	}
	for _, prefix := range []string{"./entry/", "./record/", "./item/", "entry/", "record/", "item/"} {
		if strings.HasPrefix(expr, prefix) {
			expr = "./" + strings.TrimPrefix(expr, prefix)
			break
		}
	}
	if expr == "" {
		expr = "."
	}
	return expr
}

func selectAll(node *xmlquery.Node, expr string, ns map[string]string) ([]*xmlquery.Node, error) {
	compiled, err := xpath.CompileWithNS(expr, ns)
	if err != nil {
		return nil, err
	}
	nav := xmlquery.CreateXPathNavigator(node)
	iter := compiled.Select(nav)
	var out []*xmlquery.Node
	for iter.MoveNext() {
		cur := iter.Current()
		if n, ok := cur.(*xmlquery.NodeNavigator); ok {
			out = append(out, n.Current())
		}
	}
	return out, nil
}

func cloneRootShallow(root *xmlquery.Node) *xmlquery.Node {
	clone := &xmlquery.Node{
		Type:         root.Type,
		Data:         root.Data,
		Prefix:       root.Prefix,
		NamespaceURI: root.NamespaceURI,
		Attr:         append([]xmlquery.Attr(nil), root.Attr...),
	}
	return clone
}

func appendChild(parent, child *xmlquery.Node) {
	clone := cloneSubtree(child)
	clone.Parent = parent
	if parent.LastChild == nil {
		parent.FirstChild = clone
	} else {
		parent.LastChild.NextSibling = clone
		clone.PrevSibling = parent.LastChild
	}
	parent.LastChild = clone
}

func cloneSubtree(n *xmlquery.Node) *xmlquery.Node {
	clone := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
		Attr:         append([]xmlquery.Attr(nil), n.Attr...),
	}
	var lastChild *xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cc := cloneSubtree(c)
		cc.Parent = clone
		if lastChild == nil {
			clone.FirstChild = cc
		} else {
			lastChild.NextSibling = cc
			cc.PrevSibling = lastChild
		}
		lastChild = cc
	}
	clone.LastChild = lastChild
	return clone
}

func applyTemplate(tpl, filename, ext string) string {
	name := strings.ReplaceAll(tpl, "{filename}", strings.TrimSuffix(filename, filepath.Ext(filename)))
	name = strings.ReplaceAll(name, "{ext}", ext)
	return name
}

// writeXML serializes root (with its accumulated children) as an indented,
// UTF-8 document (§4.D Output). antchfx/xmlquery builds and queries the
// tree; final pretty-printing is re-tokenized through encoding/xml, since
// nothing in the pack offers an indenting XML writer that preserves
// namespace prefixes from a xmlquery.Node tree.
func writeXML(path string, root *xmlquery.Node) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw := root.OutputXML(true)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	dec := xml.NewDecoder(strings.NewReader(raw))
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if err := enc.EncodeToken(tok); err != nil {
			return err
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	buf.WriteByte('\n')

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return err
	}
	return nil
}
