package atomo

import "fmt"

// RawChange is one staged write as seen from outside the table-typed API:
// the table name it belongs to and its raw encoded key/value bytes. The
// merklize providers consume these (translated into their own Change
// type) to update the state tree inside the same writer transaction that
// produced them.
type RawChange struct {
	Table   string
	Key     []byte
	Value   []byte
	Removed bool
}

// TableNames returns every table declared on the database ts belongs to,
// in declaration order. Used by pkg/checkpoint to enumerate tables to
// dump without needing to know the application's table list itself.
func (ts *TableSelector) TableNames() []string {
	names := make([]string, len(ts.db.tables))
	for i, t := range ts.db.tables {
		names[i] = t.Name
	}
	return names
}

// RawRow is one key/value pair as seen through the raw (untyped) table
// API, for callers — like pkg/checkpoint's full-table dump — that need
// every row of every table regardless of whether that table was declared
// iteration-enabled. Table[K,V].Keys refuses this for the typed API
// because most callers shouldn't pay for an unplanned full scan; a
// checkpoint dump is the one place that's exactly the intent.
type RawRow struct {
	Key   []byte
	Value []byte
}

// RawRows returns every row currently visible through ts for the named
// table, bypassing the WithIter() restriction Table[K,V].Keys enforces.
func (ts *TableSelector) RawRows(table string) []RawRow {
	meta, ok := ts.db.tableByName(table)
	if !ok {
		panic(fmt.Sprintf("atomo: table %q was not declared on this database", table))
	}
	var rows []RawRow
	ts.iterRaw(meta.ID, func(key []byte) bool {
		raw, ok := ts.getRaw(meta.ID, key)
		if !ok {
			return true
		}
		cp := make([]byte, len(key))
		copy(cp, key)
		rows = append(rows, RawRow{Key: cp, Value: raw})
		return true
	})
	return rows
}

// ImportRawRows stages every row in rows as an insert against table,
// bypassing codec decode/re-encode — the counterpart to RawRows, used by
// pkg/checkpoint to restore a dumped table's contents verbatim.
func (ts *TableSelector) ImportRawRows(table string, rows []RawRow) {
	meta, ok := ts.db.tableByName(table)
	if !ok {
		panic(fmt.Sprintf("atomo: table %q was not declared on this database", table))
	}
	for _, row := range rows {
		ts.setRaw(meta.ID, row.Key, batchEntry{value: row.Value})
	}
}

// ClearTableUnsafe stages a tombstone for every row currently visible in
// table. Used by pkg/checkpoint before a full restore so stale rows the
// checkpoint doesn't mention don't linger.
func (ts *TableSelector) ClearTableUnsafe(table string) {
	meta, ok := ts.db.tableByName(table)
	if !ok {
		panic(fmt.Sprintf("atomo: table %q was not declared on this database", table))
	}
	var keys [][]byte
	ts.iterRaw(meta.ID, func(key []byte) bool {
		cp := make([]byte, len(key))
		copy(cp, key)
		keys = append(keys, cp)
		return true
	})
	for _, k := range keys {
		ts.setRaw(meta.ID, k, batchEntry{removed: true})
	}
}

// ExportBatch returns every write staged directly against ts (not
// including anything still buffered in an un-flushed SubSelector). It is
// meant to be called from inside a DB.Run mutation, after any
// SubSelector writes the method body wants kept have already been
// flushed onto ts, and before anything further is staged — most callers
// use it to hand the batch to a merklize.Provider's UpdateStateTree.
func (ts *TableSelector) ExportBatch() []RawChange {
	var out []RawChange
	for id, tbl := range ts.batch {
		name := ts.db.tables[id].Name
		for k, e := range tbl {
			rc := RawChange{Table: name, Key: []byte(k), Removed: e.removed}
			if !e.removed {
				rc.Value = e.value
			}
			out = append(out, rc)
		}
	}
	return out
}
