// Package indexer coordinates the end-to-end indexing pipeline for Puppet modules.
//
// The indexer discovers manifests, parses them concurrently and stores the
// documented declarations, keeping the index in step with the module on disk.
//
// # Basic Usage
//
//	idx := indexer.New(store,
//	    indexer.WithRuntime(parser.NewRuntime("8.10.0", parser.TasksSetting)),
//	    indexer.WithLogger(logger))
//
//	stats, err := idx.IndexModule(ctx, "/etc/puppetlabs/code/modules/apache", nil)
//	fmt.Printf("Indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// # Indexing Pipeline
//
//  1. Discovery: .pp files under manifests/, functions/, types/ and plans/,
//     skipping hidden directories, spec/, vendor/ and pkg/
//  2. Incremental decision: files whose SHA-256 matches the stored hash are
//     left alone, unless the runtime version changed or Config.Force is set
//  3. Parse: one parser.Parser per file, bounded by Config.Workers
//  4. Store: Config.BatchSize files per transaction; each file's declarations
//     are replaced as a whole
//  5. Prune: files that disappeared from disk are deleted with their declarations
//
// Module name and version come from metadata.json when it is present.
//
// # Error Handling
//
// Only storage failures and cancellation abort a run. A file that cannot be read
// or parsed is counted in Statistics.FilesFailed, described in ErrorMessages and,
// for parse failures, stored with its parse error. Plans skipped by the runtime
// version gate are counted in FilesSkipped.
//
// Two runs over the same module root never overlap; the second returns
// ErrIndexInProgress.
package indexer
