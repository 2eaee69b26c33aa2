// Package sqlgen builds the parameterized SQL statements the SQL
// repository backend issues for Create/Update/Delete. Keeping generation
// as plain functions returning (statement, args) makes the exact SQL
// unit-testable without a live database, per the repository layer's
// explicit requirement that generation be deterministic.
package sqlgen

import (
	"fmt"
	"strings"
)

// Column is one (name, bound value) pair in declaration order. Order
// matters: generation is deterministic only if callers always supply
// columns in the same order for a given table.
type Column struct {
	Name  string
	Value any
}

// Insert builds "INSERT INTO table (...) VALUES (...)" with every value
// bound as a placeholder, never interpolated into the statement text.
func Insert(table string, columns []Column) (string, []any) {
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		names[i] = c.Name
		placeholders[i] = "?"
		args[i] = c.Value
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	return stmt, args
}

// Update builds "UPDATE table SET col = ?, ... WHERE pkColumn = ?". Only
// columns is ordered for determinism; the WHERE clause is always the
// single primary-key equality the repository uses to target one row.
func Update(table string, pkColumn string, pkValue any, columns []Column) (string, []any) {
	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+1)
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = ?", c.Name)
		args = append(args, c.Value)
	}
	args = append(args, pkValue)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ", "), pkColumn)
	return stmt, args
}

// Delete builds "DELETE FROM table WHERE pkColumn = ?".
func Delete(table string, pkColumn string, pkValue any) (string, []any) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, pkColumn)
	return stmt, []any{pkValue}
}

// SelectByID builds "SELECT * FROM table WHERE pkColumn = ?".
func SelectByID(table string, pkColumn string, pkValue any) (string, []any) {
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", table, pkColumn)
	return stmt, []any{pkValue}
}
