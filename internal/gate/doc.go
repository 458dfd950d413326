// Package gate decides whether a freshly recorded segment is usable.
//
// The gate works only on container metadata that was probed when the
// segment was built. It performs no pixel analysis: orientation, resolution,
// duration and byte size act as coarse proxies for capture quality so the
// user gets fast feedback before moving to the next angle.
//
// Check is pure. Calling it twice on the same segment yields the same
// result, and the segment is never modified.
package gate
