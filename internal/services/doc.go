// Package services holds the error taxonomy and context annotations shared
// by the pipeline runner and its external capabilities.
package services
