// Package xmlcodec translates between sapadt records and the XML dialects of
// the ADT and BW modelling APIs.
//
// The codec is stateless. Every attribute lookup accepts the qualified form
// (adtcore:name) and the unqualified form (name); element matches compare
// local names so that namespace prefix drift between releases does not break
// parsing. Malformed documents yield an Internal *adterr.Error, never a panic.
package xmlcodec

import (
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"pkt.systems/sapadt/adterr"
)

// Namespaces used by request documents.
const (
	NSAdtCore    = "http://www.sap.com/adt/core"
	NSPackages   = "http://www.sap.com/adt/packages"
	NSAbapGit    = "http://www.sap.com/adt/abapgit/repositories"
	NSCheckRun   = "http://www.sap.com/adt/checkrun"
	NSAUnit      = "http://www.sap.com/adt/aunit"
	NSATC        = "http://www.sap.com/adt/atc"
	NSBWCTO      = "http://www.sap.com/bw/cto"
	NSAbapXML    = "http://www.sap.com/abapxml"
	NSAtom       = "http://www.w3.org/2005/Atom"
	NSAppService = "http://www.w3.org/2007/app"
)

// parse reads data into a document and returns its root element.
func parse(operation, endpoint string, data []byte) (*etree.Element, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, adterr.New(operation, endpoint, adterr.Internal, "empty XML document")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(trimmed); err != nil {
		return nil, parseError(operation, endpoint, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, adterr.New(operation, endpoint, adterr.Internal, "XML document has no root element")
	}
	return root, nil
}

func parseError(operation, endpoint string, err error) error {
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		return adterr.Newf(operation, endpoint, adterr.Internal, "malformed XML at line %d: %s", syntax.Line, syntax.Msg)
	}
	return adterr.Newf(operation, endpoint, adterr.Internal, "malformed XML: %v", err)
}

// localName strips a namespace prefix.
func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// is reports whether el matches name. A qualified name matches exactly or by
// local name under any prefix; an unqualified name matches by local name.
func is(el *etree.Element, name string) bool {
	if el == nil {
		return false
	}
	return el.Tag == localName(name)
}

// child returns the first direct child matching name.
func child(el *etree.Element, name string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if is(c, name) {
			return c
		}
	}
	return nil
}

// children returns all direct children matching name.
func children(el *etree.Element, name string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if is(c, name) {
			out = append(out, c)
		}
	}
	return out
}

// descendants returns every element below el (depth first, document order)
// matching name.
func descendants(el *etree.Element, name string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			if is(c, name) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if el != nil {
		walk(el)
	}
	return out
}

// first returns the first descendant (or el itself) matching name.
func first(el *etree.Element, name string) *etree.Element {
	if el == nil {
		return nil
	}
	if is(el, name) {
		return el
	}
	for _, c := range el.ChildElements() {
		if found := first(c, name); found != nil {
			return found
		}
	}
	return nil
}

// text returns the trimmed text content of el.
func text(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

// childText returns the text of the first child matching name.
func childText(el *etree.Element, name string) string {
	return text(child(el, name))
}

// attrLookup finds an attribute by qualified key first, then by any prefix
// with the same local name, then unqualified. direct is false when a qualified
// key was requested but only the unqualified fallback matched.
func attrLookup(el *etree.Element, keys ...string) (value string, found bool, direct bool) {
	if el == nil {
		return "", false, false
	}
	for _, key := range keys {
		space, local := "", key
		if i := strings.IndexByte(key, ':'); i >= 0 {
			space, local = key[:i], key[i+1:]
		}
		if space != "" {
			for _, a := range el.Attr {
				if a.Space == space && a.Key == local {
					return a.Value, true, true
				}
			}
			for _, a := range el.Attr {
				if a.Space != "" && a.Space != "xmlns" && a.Key == local {
					return a.Value, true, true
				}
			}
		}
		for _, a := range el.Attr {
			if a.Space == "" && a.Key == local {
				return a.Value, true, space == ""
			}
		}
	}
	return "", false, false
}

// attr returns the first matching attribute among keys, each key tried in both
// qualified and unqualified form.
func attr(el *etree.Element, keys ...string) string {
	v, _, _ := attrLookup(el, keys...)
	return v
}

// AttrAny is the exported lookup used by callers that need to know whether
// the value came only from the unqualified fallback.
func AttrAny(el *etree.Element, qualified string) (value string, unqualifiedOnly bool) {
	v, found, direct := attrLookup(el, qualified)
	if !found {
		return "", false
	}
	return v, !direct
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func itoa(n int) string { return strconv.Itoa(n) }

func flag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "true", "1", "yes":
		return true
	}
	return false
}

// newDoc returns a document with the XML declaration and a root element.
func newDoc(root string, ns map[string]string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	el := doc.CreateElement(root)
	for _, prefix := range sortedKeys(ns) {
		el.CreateAttr("xmlns:"+prefix, ns[prefix])
	}
	return doc, el
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func render(doc *etree.Document) (string, error) {
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("render xml: %w", err)
	}
	return out, nil
}
