// Package runner drives the daily publish pipeline: claim an item,
// resolve its download quality, fetch, upload, and commit or roll back.
// One invocation handles at most one item.
package runner
