// Package main provides the entry point for the Release Service application.
//
// Release Service synchronizes staged RDF publications into the canonical
// triple store. It watches for release tasks, canonicalizes resource
// identities via owl:sameAs links, remaps role holders onto their temporal
// mandates, and moves the released graph into the public dataset.
//
// The service supports:
//   - Durable release tasks tracked as adms:status triples in the store
//   - Delta notifications that trigger queue processing
//   - Identity resolution and minting for staged resources
//   - Temporal role-holder mapping against mandate registries
//   - Email notification on failed releases
//   - JWT authentication with admin and operator roles
//
// Usage:
//
//	releaseservice serve [flags]
//
// Environment Variables:
//   - STORE_URL: SPARQL endpoint base URL (default: http://localhost:7200)
//   - PORT: HTTP server port (default: 8080)
//
// Example:
//
//	export STORE_URL=http://triplestore:7200
//	export PORT=8080
//	releaseservice serve
package main

import "evalgo.org/releaseservice/cmd"

// main is the application entry point that delegates to the cobra command structure.
func main() {
	_ = cmd.Execute()
}
