// Package rdf provides the RDF term and triple model used across the service.
//
// Terms are a tagged representation: a term is either a URI, a blank node or a
// literal, and a literal carries at most one of a datatype or a language tag.
// The package also knows how to render terms in SPARQL syntax and how to parse
// terms out of SPARQL 1.1 JSON query results.
package rdf

import (
	"fmt"
	"strings"
	"time"
)

// TermKind discriminates the variants of a Term.
type TermKind int

const (
	// TermURI is a URI reference.
	TermURI TermKind = iota
	// TermLiteral is a plain, typed or language-tagged literal.
	TermLiteral
	// TermBlank is a blank node. Blank nodes only occur when parsing query
	// results; the service never writes them.
	TermBlank
)

// String returns the string representation of TermKind
func (k TermKind) String() string {
	switch k {
	case TermURI:
		return "uri"
	case TermLiteral:
		return "literal"
	case TermBlank:
		return "bnode"
	default:
		return "unknown"
	}
}

// Term is a single RDF term. Equality is structural: two terms are equal when
// all four fields are equal, which makes Term usable as a map key.
//
// Invariant: Datatype and Language are only set on literals, and never both.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Language string
}

// NewURI creates a URI term
func NewURI(value string) Term {
	return Term{Kind: TermURI, Value: value}
}

// NewLiteral creates a plain literal term without datatype or language tag
func NewLiteral(value string) Term {
	return Term{Kind: TermLiteral, Value: value}
}

// NewTypedLiteral creates a literal term with the given datatype URI
func NewTypedLiteral(value, datatype string) Term {
	return Term{Kind: TermLiteral, Value: value, Datatype: datatype}
}

// NewLangLiteral creates a literal term with the given language tag
func NewLangLiteral(value, language string) Term {
	return Term{Kind: TermLiteral, Value: value, Language: language}
}

// DateTimeLiteral creates an xsd:dateTime literal from a time value.
// The value is rendered in UTC so temporal filters compare consistently.
func DateTimeLiteral(t time.Time) Term {
	return NewTypedLiteral(t.UTC().Format("2006-01-02T15:04:05.000Z"), XSDDateTime)
}

// IsURI reports whether the term is a URI reference
func (t Term) IsURI() bool {
	return t.Kind == TermURI
}

// Validate checks the literal invariant: a term carries at most one of a
// datatype or a language tag, and only literals carry either.
func (t Term) Validate() error {
	if t.Kind != TermLiteral && (t.Datatype != "" || t.Language != "") {
		return fmt.Errorf("%s term cannot carry a datatype or language tag", t.Kind)
	}
	if t.Datatype != "" && t.Language != "" {
		return fmt.Errorf("literal cannot carry both datatype %q and language tag %q", t.Datatype, t.Language)
	}
	return nil
}

// Format renders the term in SPARQL syntax, preserving the datatype or
// language tag of literals exactly. A plain literal and an xsd:string typed
// literal render identically, matching how the store hands them back.
func (t Term) Format() string {
	switch t.Kind {
	case TermURI:
		return EscapeURI(t.Value)
	case TermBlank:
		return "_:" + t.Value
	default:
		escaped := EscapeString(t.Value)
		if t.Datatype != "" && t.Datatype != XSDString {
			return escaped + "^^" + EscapeURI(t.Datatype)
		}
		if t.Language != "" {
			return escaped + "@" + t.Language
		}
		return escaped
	}
}

// Triple is a single RDF statement. The predicate is always a URI term.
// Triples live inside a named graph; the graph identifier is carried by the
// operations that read and write them, not by the triple itself.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Format renders the triple as a SPARQL statement terminated with " ."
func (tr Triple) Format() string {
	return tr.Subject.Format() + " " + tr.Predicate.Format() + " " + tr.Object.Format() + " ."
}

// iriUnsafe replaces characters that are illegal inside a SPARQL IRIREF
var iriUnsafe = strings.NewReplacer(
	"<", "%3C",
	">", "%3E",
	`"`, "%22",
	" ", "%20",
	"{", "%7B",
	"}", "%7D",
	"|", "%7C",
	"^", "%5E",
	"`", "%60",
	`\`, "%5C",
)

// EscapeURI renders a URI value as a SPARQL IRIREF
func EscapeURI(value string) string {
	return "<" + iriUnsafe.Replace(value) + ">"
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// EscapeString renders a string value as a quoted SPARQL string literal
func EscapeString(value string) string {
	return `"` + stringEscaper.Replace(value) + `"`
}
