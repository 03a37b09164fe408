package filter

import "github.com/antchfx/xmlquery"

// resolveNamespaces implements §4.D Namespaces: an explicit list takes
// precedence; otherwise auto_register_namespaces copies every prefix/uri
// declared on the root element, binding any default namespace to the
// reserved prefix "default".
func (e *Engine) resolveNamespaces(root *xmlquery.Node) map[string]string {
	ns := make(map[string]string)
	if len(e.spec.Namespaces) > 0 {
		for _, n := range e.spec.Namespaces {
			ns[n.Prefix] = n.URI
		}
		return ns
	}
	if !e.spec.AutoRegisterNamespaces {
		return ns
	}
	for _, a := range root.Attr {
		switch {
		case a.Name.Space == "xmlns" && a.Name.Local != "":
			ns[a.Name.Local] = a.Value
		case a.Name.Local == "xmlns":
			ns["default"] = a.Value
		}
	}
	return ns
}
