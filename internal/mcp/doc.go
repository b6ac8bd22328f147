// Package mcp implements the Model Context Protocol (MCP) server for puppetdoc.
//
// The server exposes four tools to AI assistants:
//   - index_module: Parse a Puppet module and store its documented declarations
//   - search_docs: Keyword search over declaration names and docstrings
//   - get_status: Report indexing statistics for a module
//   - parse_source: Parse Puppet source text without touching the store
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio. stdout carries protocol messages only, so
// all logging goes to stderr:
//
//	puppetdoc serve --log-level debug
//
// # Tool: index_module
//
//	Request:
//	{
//	  "name": "index_module",
//	  "arguments": {"path": "/etc/puppetlabs/code/modules/apache", "force_reindex": false}
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "run_id": "5b1f...",
//	  "files_indexed": 12,
//	  "files_skipped": 1,
//	  "files_failed": 0,
//	  "declarations_extracted": 31,
//	  "duration_ms": 84
//	}
//
// # Tool: search_docs
//
//	Request:
//	{
//	  "name": "search_docs",
//	  "arguments": {
//	    "path": "/etc/puppetlabs/code/modules/apache",
//	    "query": "vhost ssl*",
//	    "filters": {"kinds": ["defined_type"], "file_pattern": "manifests/*"}
//	  }
//	}
//
// Results carry the declaration record (name, kind, line, docstring,
// parameters) together with its rank and a relevance score in [0, 1).
// Results are ordered by descending relevance.
//
// # Tool: parse_source
//
// parse_source applies the same rules as indexing, including the plan
// version gate: a file under plans/ parsed with runtime_version below 5.0.0
// comes back with "skipped": true and no statements.
//
// # Error Handling
//
// Handler failures are returned as *MCPError values:
//   - -32602: Invalid params
//   - -32603: Internal error
//   - -32001: Path is not a Puppet module
//   - -32002: Indexing in progress
//   - -32003: Module not indexed
//   - -32004: Empty query
package mcp
