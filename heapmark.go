// ABOUTME: Main heapmark package providing version information and package documentation
// ABOUTME: This is the root package for the concurrent marking simulator

// Package heapmark simulates the concurrent marking phase of a tri-color
// garbage collector. A background task scans objects that are safe to read
// off the main thread and defers the rest to a single-threaded finisher.
// The heap, marking, graph, heapdump, render and config packages hold the
// pieces; cmd/heapmark wires them into a command line tool.
package heapmark

// Version is the semantic version of the heapmark tool
const Version = "0.1.0-dev"
