// Package graph provides the mutable directed graph used to schedule
// representations and to record dependencies between site entities.
package graph
