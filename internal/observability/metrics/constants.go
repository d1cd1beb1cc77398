// Package metrics provides constants used across metric definitions.
package metrics

// Operation label values recorded by the datastore callbacks.
const (
	OpCreate = "create"
	OpQuery  = "query"
	OpUpdate = "update"
	OpDelete = "delete"
	OpRow    = "row"
	OpRaw    = "raw"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart1KB is the starting bucket for byte-size histograms.
	BucketStart1KB = 1024.0
	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor4 grows size buckets faster since uploads span several orders of magnitude.
	BucketFactor4 = 4
	// BucketCount15 covers 1ms to ~16s.
	BucketCount15 = 15
	// BucketCount10 covers 1KB to ~256MB with factor 4.
	BucketCount10 = 10
)
