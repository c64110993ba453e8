// Package ir provides the foundational types shared by every relfilter
// package: model descriptors, filter descriptions and their canonical
// encoding.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - Models are immutable once built; accessors never mutate
//   - AttrType and Operator are closed vocabularies with Parse functions
//   - The compiled filter and the raw filter share one shape (Filter), so a
//     compiled filter can be compiled again
//   - MarshalCanonical is the only encoding used for identity (FilterID)
//     and for idempotence comparisons
package ir
