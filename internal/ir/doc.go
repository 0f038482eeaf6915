// Package ir provides the value model and tree types for uispec.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is sealed; a nil Value means undefined, Null is an explicit null
//   - Canonical JSON (RFC 8785) is the only serialization used for hashing
//   - JSON field names follow the wire format (camelCase for tree documents,
//     snake_case for journal records)
package ir
