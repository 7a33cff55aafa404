// Package tasks implements per-user task CRUD, filtered listing and stats.
//
// Dates are calendar dates in UTC. A task is visible only to its owner and
// only until it is soft-deleted.
package tasks
