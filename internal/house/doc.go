// Package house contains the domain model for a smart house and the
// machinery that keeps it consistent: the House → Room → Device tree, the
// device action engine, the alarm state machine, the persistence gateway,
// and the in-memory house cache.
//
// The cached tree is the sole read path for status queries; the store is
// write-side only except at load time. Handlers mutate the tree in place
// under the cache's bounded-wait mutex and commit every change through the
// Repository before broadcasting it.
package house
