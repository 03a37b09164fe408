package filter

import (
	"github.com/antchfx/xmlquery"
)

// identifyEntries implements §4.D Entry identification: every node matched
// by any criterion's XPath (evaluated as written, against the document)
// contributes its nearest "entry" ancestor; matches sharing an entry are
// deduplicated, and entries are returned in first-seen order: criteria in
// configuration order, each criterion's matches in document order.
func (e *Engine) identifyEntries(root *xmlquery.Node, ns map[string]string) ([]*xmlquery.Node, error) {
	seen := make(map[*xmlquery.Node]bool)
	var order []*xmlquery.Node

	for _, crit := range e.spec.Criteria {
		matches, err := selectAll(root, crit.XPath, ns)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			entry := nearestEntryAncestor(m)
			if !seen[entry] {
				seen[entry] = true
				order = append(order, entry)
			}
		}
	}
	return order, nil
}

// nearestEntryAncestor walks up from n to the nearest ancestor named
// entry/record/item or carrying an xsi:type attribute; if none exists, n
// itself is the entry (§4.D).
func nearestEntryAncestor(n *xmlquery.Node) *xmlquery.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != xmlquery.ElementNode {
			continue
		}
		switch cur.Data {
		case "entry", "record", "item":
			return cur
		}
		if hasXsiType(cur) {
			return cur
		}
		if cur.Parent == nil {
			break
		}
	}
	return n
}

func hasXsiType(n *xmlquery.Node) bool {
	for _, a := range n.Attr {
		if a.Name.Local == "type" && a.Name.Space == "xsi" {
			return true
		}
	}
	return false
}
