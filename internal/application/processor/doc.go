// Package processor implements the per-node-type executors and their
// registry.
//
// Each processor satisfies the NodeProcessor contract: a pure Validate over
// the node's tagged config variant, and an Execute that never panics across
// the coordinator boundary. Output mappings rewrite raw results via bounded
// dot-path resolution; unresolved paths leave the key absent.
package processor
