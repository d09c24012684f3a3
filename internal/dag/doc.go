// Package dag provides the directed-acyclic-graph bookkeeping for bundle
// dependencies. The engine records an edge from every producer bundle to
// its consumers and validates at construction time that the relation is
// acyclic, since evaluation order within a stage is derived from it.
package dag
