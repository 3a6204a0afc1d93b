// Package taffy is a storage library for GraphQL schema registries. It
// persists schemas, environments, clients and their versions, persisted query
// documents addressed by content hash, and the record of which client
// versions have been published to which environments.
//
// The package itself holds only the error vocabulary shared by every taffy
// package. The entity types and repository contracts live in the db
// subpackage, with one implementation of them per supported storage engine
// (db/inmem, db/sqlite, db/postgres). Use config.Database.Connect or the
// backend constructors directly to obtain a db.Store.
package taffy
