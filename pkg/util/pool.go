package util

import "runtime"

// ParserPoolSize returns how many tree-sitter parsers a language pool may hold.
//
// Files are processed one at a time, so a single parser per grammar is
// normally enough; the organize pass and the MCP server may parse while a
// run is in flight, which is why the pool can grow to half the cores (max 8).
func ParserPoolSize(override int) int {
	if override > 0 {
		return override
	}
	size := runtime.NumCPU() / 2
	if size < 2 {
		size = 2
	}
	if size > 8 {
		size = 8
	}
	return size
}
