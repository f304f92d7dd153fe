// Package largefiles tracks large files by reference.
//
// A large working file is replaced in history by a small standin under
// .hglf/ that records the SHA-1 and size of its content. The content itself
// lives in a content-addressed store in .largefiles/, in an optional
// machine-wide user cache, and on remote stores reached over the largefile
// wire protocol, a path, or an OCI registry.
//
// Basic usage:
//
//	repo, _ := largefiles.Open("work", largefiles.WithMinSize(10<<20))
//	defer repo.Close()
//
//	// Store large files and write their standins
//	rev, _ := repo.Capture(ctx)
//
//	// Upload missing blobs before sending the revision itself
//	rs, _ := repo.OpenRemote(ctx, "https://example.com/repo")
//	err := repo.Push(ctx, rs, []largefiles.Revision{rev}, pushChangesets)
//
//	// Bring another checkout up to date
//	report, _ := other.Update(ctx, rev, rs)
//	fmt.Println(report.Updated)
//
//	// Check integrity
//	vr, _ := repo.Verify(ctx, []largefiles.Revision{rev}, largefiles.VerifyAllContents, rs)
//
// Every blob is re-hashed whenever it crosses from one store to another.
package largefiles
