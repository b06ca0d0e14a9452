// Package youtube talks to the YouTube Data API: metadata lookup for
// enqueued links and the resumable upload used at publish time.
package youtube
