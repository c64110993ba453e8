// Package querydoc is the document connector: it compiles query plans into
// MongoDB-style aggregation pipelines.
//
// A plan with joins becomes
//
//	$lookup (one per relation hop, into "__<alias>")
//	$match  (clauses read "__<alias>.<field>")
//	$sort   (closing on _id)
//	$skip / $limit
//	$unset  (drops the "__" fields again)
//
// Values are converted to their BSON forms: timestamps to DateTime, decimals
// to Decimal128 and 24-hex strings compared against a primary key to
// ObjectID.
package querydoc
