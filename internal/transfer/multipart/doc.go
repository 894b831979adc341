// Package multipart drives a file upload through one multipart session.
//
// A session moves through Init, PartsInFlight, Completing and Completed, or
// ends in Aborting and Aborted. Every part is dispatched before the session
// is reconciled against the store's own part listing, so the commit decision
// never depends on which worker finished last.
package multipart
