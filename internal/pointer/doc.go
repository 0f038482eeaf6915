// Package pointer resolves slash-delimited paths against a JSON data model
// and rewrites per-iteration repeat tokens.
//
// Paths follow JSON Pointer (RFC 6901) escaping: "~1" is "/" and "~0" is "~".
// A missing leading slash is tolerated, and "" or "/" address the document
// root. Set never mutates its input: it returns a new top-level value that
// shares every untouched branch with the original.
package pointer
