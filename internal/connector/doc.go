// Package connector defines the contract between the dispatch layer and the
// storage connectors, and the registry that maps storage-engine keys to
// them.
//
// A connector is anything implementing QueryBuilder. The relational
// connector (package querysql) and the document connector (package
// querydoc) are the two built in; embedders may register their own under
// any key.
package connector
