// package repositories provides the SQLite-backed metadata cache.
//
// The cache keeps track records between runs so the optimizer's existence
// pre-check and repeated plan generations do not re-fetch unchanged catalog
// metadata. database/sql connections are safe for concurrent use, which is
// what makes the cache a valid shared collaborator for parallel workers.
package repositories
