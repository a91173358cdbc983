// Package mongorepository provides a generic repository over MongoDB
// collections: typed CRUD, find, count and delete operations for entity
// structs keyed either by the driver's native ObjectID or by a
// caller-supplied key type.
//
// A repository is bound at construction to one collection handle and one
// key codec and holds no mutable state of its own, so a single instance
// is safe for concurrent use. Everything else (pooling, retries, write
// concerns, transactions) belongs to the driver and is deliberately not
// wrapped here.
package mongorepository
