// Package device defines device records and their persistence.
//
// Every record belongs to exactly one user; store operations are scoped to a
// (user key, device id) pair so cross-user access is impossible by
// construction. The runtime state of a device is a JSON mapping whose shape
// is the union of the fields its traits use; state writes are always partial
// merges, never whole-document replacement.
package device
