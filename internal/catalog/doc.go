// Package catalog is the compiled-query store: the read-only registry of
// query interfaces and SQL templates the engine resolves query ids against.
//
// A compiled directory has the layout
//
//	<dir>/interface/<id>.json   query interface (params, output, keys, ...)
//	<dir>/sql/<id>.sql          SQL template with :name placeholders
//
// DirStore loads a whole directory into an immutable snapshot and swaps it
// atomically on reload, so concurrent readers never see a partially written
// entry. MemStore holds entries registered in code.
package catalog
