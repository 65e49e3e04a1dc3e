// Package util provides the shared data structures underneath the minkv
// core: a deadline-ordered priority queue with key-based access (used by the
// release scheduler) and a lock-free multi-producer single-consumer queue
// (used to funnel concurrently received events into the single-writer merge
// loop).
package util
