// Package querysql compiles journal queries to parameterized SQLite SQL.
//
// Column and table names are checked against queryir.Columns before they
// reach the SQL text; values only ever travel as ? parameters. Every
// statement orders by seq.
package querysql
