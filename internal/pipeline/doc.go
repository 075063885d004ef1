// package pipeline implements the three stages that drive a download run.
//
// The core abstraction is the plan: the [Generator] resolves configured
// sources into plan items, the [Optimizer] collapses duplicates, pre-checks
// existing output and orders the plan, and the [Executor] runs every pending
// track through a bounded worker pool before reconciling container statuses
// and materializing playlist files. Progress is reported through a callback
// after every status-affecting transition.
package pipeline
