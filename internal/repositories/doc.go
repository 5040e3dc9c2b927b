// Package repositories implements durable key/value storage used by the token store.
//
// Key Implementations:
//   - [SQLiteStore] : rows in the migrated kv table
//   - [RedisStore] : plain string keys on a Redis server
//   - [MemoryStore] : process-local map for tests and throwaway sessions
//
// Values are opaque strings; callers own their encoding.
package repositories
