// Package sched is a minimal run-to-completion scheduler for firmware
// timers and tasks.
package sched

// Timers are kept in a singly linked list sorted by waketime using
// wraparound tolerant comparison. A periodic timer is always queued so
// the list is never empty and tasks get woken at least once a second.
//
// Everything in this package must be used from the scheduler goroutine
// only. Other goroutines hand data over through ring buffers or channels
// and let a task or timer pick it up.
