// Package meta holds the per-method transformation metadata: the state
// counter handing out resume-point IDs, the table of captured local slots,
// and the cache mapping each state ID to its resume label.
//
// A Container is created for one method and owned by that method's
// transformation. It is not safe for concurrent use.
package meta
