// Package manager orchestrates the model lifecycle end to end: it resolves
// catalog entries, asks the planner to admit a load, allocates a listen
// port, spawns and supervises the backend process and keeps the registry
// in sync. All mutations of shared lifecycle state funnel through a single
// admission lock so concurrent loads cannot overcommit memory.
package manager
