// Package domain defines the core business types of the listbridge service.
//
// Types in this package are pure value objects with no behavior beyond
// accessors, no database dependencies, and no HTTP concerns. They are the
// shared language between handlers, the subscription layer, and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Accessor methods are allowed (they're pure functions on the type)
package domain
