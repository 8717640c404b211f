// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package executor

import (
	"database/sql"
	"fmt"
)

// Type names as reported by database/sql. Types the driver has no name for
// are reported by OID.
var (
	refcursorTypes = map[string]struct{}{"REFCURSOR": {}, "1790": {}}
	voidTypes      = map[string]struct{}{"VOID": {}, "2278": {}}
)

// capture is one result set: either a table or the cursor names it returned.
type capture struct {
	table   *Table
	cursors []string
}

func hasCursors(captures []capture) bool {
	for _, c := range captures {
		if len(c.cursors) > 0 {
			return true
		}
	}
	return false
}

// readResultSets drains every result set of rows in order and closes it.
// Zero-column and all-void sets are dropped; all-refcursor sets yield cursor
// names instead of a table.
func readResultSets(rows *sql.Rows) (captures []capture, err error) {
	defer func() {
		if closeErr := rows.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	for {
		columnTypes, err := rows.ColumnTypes()
		if err != nil {
			return nil, fmt.Errorf("executor_read_columns_failed: %w", err)
		}

		switch {
		case len(columnTypes) == 0 || allOf(columnTypes, voidTypes):
			for rows.Next() {
			}

		case allOf(columnTypes, refcursorTypes):
			names, err := readCursorNames(rows, len(columnTypes))
			if err != nil {
				return nil, err
			}
			captures = append(captures, capture{cursors: names})

		default:
			table, err := readTable(rows, columnTypes)
			if err != nil {
				return nil, err
			}
			captures = append(captures, capture{table: table})
		}

		if err := rows.Err(); err != nil {
			return nil, err
		}
		if !rows.NextResultSet() {
			break
		}
	}

	return captures, rows.Err()
}

func allOf(columnTypes []*sql.ColumnType, names map[string]struct{}) bool {
	if len(columnTypes) == 0 {
		return false
	}
	for _, ct := range columnTypes {
		if _, ok := names[ct.DatabaseTypeName()]; !ok {
			return false
		}
	}
	return true
}

// readTable reads every row into a column-name map. Column order is kept in
// Columns; when names repeat, the right-most column wins in the row map.
func readTable(rows *sql.Rows, columnTypes []*sql.ColumnType) (*Table, error) {
	columns := make([]string, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ct.Name()
	}

	table := &Table{Columns: columns, Rows: []map[string]any{}}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("executor_scan_failed: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalize(values[i], columnTypes[i].DatabaseTypeName())
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// readCursorNames collects every non-null cursor name, row by row and left to right.
func readCursorNames(rows *sql.Rows, width int) ([]string, error) {
	var names []string

	values := make([]sql.NullString, width)
	pointers := make([]any, width)
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("executor_scan_cursor_failed: %w", err)
		}
		for _, v := range values {
			if v.Valid && v.String != "" {
				names = append(names, v.String)
			}
		}
	}

	return names, nil
}
