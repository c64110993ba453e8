// Package querysql is the relational connector: it compiles query plans to
// parameterized SQLite SQL.
//
// Every relation hop becomes a LEFT JOIN aliased by its relation path, so a
// clause on author.company.name reads "author__company"."name". Values are
// always bound as parameters, and every statement ends with an ORDER BY that
// closes on the root primary key so results are deterministic.
package querysql
