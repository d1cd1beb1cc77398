// Package entities defines the GORM models for transformer inspection data.
//
// # Ownership
//
//   - Transformer owns Inspections and Images
//   - Inspection owns Images
//   - Image owns Annotations
//
// Ownership is stored only as foreign keys on the owned side, each with
// ON DELETE CASCADE. Parents carry no child collections; children are
// always fetched by query.
//
// # Business keys
//
// Transformer.TransformerNo and Inspection.InspectionNo are unique under
// case-insensitive comparison. The folded form is kept in a separate
// uniquely indexed column maintained by BeforeSave hooks.
package entities
