// Package archiver reconciles a creator's remote posts with the local
// archive.
//
// A Paginator turns listings into post ids, a Resolver hydrates posts and
// classifies their content, and the Archiver decides per post and per
// content item what still has to be fetched, using the ledger and the files
// already on disk. Everything runs sequentially on the caller's goroutine.
package archiver
