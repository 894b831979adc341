// Package worker transfers single parts.
//
// A Downloader fetches one byte range with a ranged GET and writes it at the
// matching offset of a preallocated file. An Uploader reads one byte range of
// a local file and sends it as a numbered part of a multipart session. Both
// retry under a shared policy and report a PartResult; neither touches
// session or file-level state.
package worker
