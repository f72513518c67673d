// Package pagination computes follow-up pages from decoded response
// bodies. APIs that page with (start, per_page, total) fields rarely put
// them in the same place, so callers name the fields with dotted
// key-paths into the decoded JSON.
//
// Example usage:
//
//	keys := pagination.Keys{Start: "meta.start", PerPage: "meta.per_page", Total: "meta.total"}
//	next, ok, err := pagination.NextStart(decoded, keys)
//	if ok {
//	    // build the follow-up request with start=next
//	}
//
// The helper only computes positions; issuing the follow-up request is
// the response handler's job, typically by yielding a spawned request
// back to the engine.
package pagination
