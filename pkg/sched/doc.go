// Package sched runs named functions on a fixed pool of worker slots and
// resolves their results through future handles.
//
// Submit returns a handle immediately. Arguments that are themselves
// handles make the task wait until each referenced entry is terminal; the
// function then receives plain values, never handles. A failed input fails
// the dependent without running it, and the failure keeps propagating
// through the dependency graph.
//
// All scheduler state (task table, blocked index, ready queue, slot table)
// is guarded by one mutex, so every observable transition is serial.
// Workers touch that state only through finish; result entries are written
// exactly once, inside the same critical section that updates the task.
//
// Runnable tasks are ordered by readiness event, then by ascending task id
// for tasks readied by the same event, and idle slots are filled
// lowest-id-first. With equal-length tasks this makes placement
// reproducible run to run.
package sched
