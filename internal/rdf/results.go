package rdf

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueryResult is a SPARQL 1.1 JSON query result document
type QueryResult struct {
	Head    ResultHead    `json:"head"`
	Results ResultResults `json:"results"`
	Boolean *bool         `json:"boolean,omitempty"`
}

// ResultHead lists the projected variables
type ResultHead struct {
	Vars []string `json:"vars"`
}

// ResultResults holds the solution bindings
type ResultResults struct {
	Bindings []Binding `json:"bindings"`
}

// Binding maps a variable name to a bound term
type Binding map[string]BoundTerm

// BoundTerm is a single term as serialized in SPARQL JSON results.
// Virtuoso-style stores emit "typed-literal" instead of "literal" for
// literals carrying a datatype; both are accepted.
type BoundTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Language string `json:"xml:lang,omitempty"`
}

// Term converts the wire representation into a tagged Term
func (b BoundTerm) Term() (Term, error) {
	switch b.Type {
	case "uri":
		return NewURI(b.Value), nil
	case "literal", "typed-literal":
		term := Term{Kind: TermLiteral, Value: b.Value, Datatype: b.Datatype, Language: b.Language}
		if err := term.Validate(); err != nil {
			return Term{}, err
		}
		return term, nil
	case "bnode":
		return Term{Kind: TermBlank, Value: b.Value}, nil
	default:
		return Term{}, fmt.Errorf("unknown term type %q", b.Type)
	}
}

// ParseResult decodes a SPARQL JSON result document
func ParseResult(data []byte) (*QueryResult, error) {
	var result QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse query result: %w", err)
	}
	return &result, nil
}

// First returns the binding for a variable in the first solution, or false
// when the result is empty or the variable is unbound
func (r *QueryResult) First(variable string) (BoundTerm, bool) {
	if len(r.Results.Bindings) == 0 {
		return BoundTerm{}, false
	}
	term, ok := r.Results.Bindings[0][variable]
	return term, ok
}

// Triples interprets each solution's ?subject ?predicate ?object bindings as
// a triple, in result order
func (r *QueryResult) Triples() ([]Triple, error) {
	triples := make([]Triple, 0, len(r.Results.Bindings))
	for _, binding := range r.Results.Bindings {
		var triple Triple
		var err error
		for variable, target := range map[string]*Term{
			"subject":   &triple.Subject,
			"predicate": &triple.Predicate,
			"object":    &triple.Object,
		} {
			bound, ok := binding[variable]
			if !ok {
				return nil, fmt.Errorf("result binding is missing ?%s", variable)
			}
			if *target, err = bound.Term(); err != nil {
				return nil, err
			}
		}
		triples = append(triples, triple)
	}
	return triples, nil
}

// ParseDateTime parses an xsd:dateTime literal value as emitted by the store.
// Values come back with or without fractional seconds and with either an
// offset or the Z designator.
func ParseDateTime(value string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as xsd:dateTime", value)
}
