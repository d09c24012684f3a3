// Package engine is the execution core: it owns stencil bundles and
// stages, tiles iteration regions into cluster, full-vector, and masked
// partial-vector sub-regions, and dispatches them to the compiler-generated
// kernels.
//
// The engine never inspects a stencil's shape. Generated code is reached
// only through the BundleKernel contract, and all bookkeeping (bounding
// boxes, scratch halos, dirty flags) is driven from that contract plus the
// dimension metadata the solution was compiled with.
package engine
