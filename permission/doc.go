// Package permission resolves, caches, and checks a user's business and shop
// scoped permissions.
//
// # Pieces
//
//   - [Resolver] turns ownership and role assignments into a [Snapshot] and
//     persists it through a [Source].
//   - [Cache] stores one [Entry] per user; [MemoryCache] and [RedisCache]
//     implement it.
//   - [Checker] keeps entries fresh ([Checker.Init]) and answers Can and
//     HasRestriction for an explicit [Subject].
//   - [Admin] mutates roles and assignments and clears affected entries.
//
// # Architecture boundaries
//
// The checker never reads request state. Callers build a [Subject] from the
// validated session identity and pass it to each check.
//
// # What this package must NOT do
//
//   - Import havenAuth or the HTTP layers.
//   - Patch a cached snapshot in place.
//   - Grant access when the cache cannot be read.
package permission
