// Package repository provides repository interfaces and GORM implementations
// for the inspection schema.
//
// # Error Handling
//
// Repositories never leak GORM errors. Missing rows map to the ErrXNotFound
// sentinels (all matching ErrNotFound), unique violations to ErrDuplicateKey
// and foreign key violations to ErrReferenceNotFound. Anything else is wrapped
// as a database-category EnhancedError.
//
// # Transactions
//
// Repositories.Transaction runs a unit of work on one *gorm.DB transaction and
// hands the callback a Repositories bound to it. Multi-table deletes open their
// own transaction, which becomes a savepoint when nested.
//
// # Required Schema Constraints
//
//   - transformers: UNIQUE(transformer_no_key)
//   - inspections: UNIQUE(inspection_no_key)
//   - images: UNIQUE(file_path)
//   - every child FK declared ON DELETE CASCADE
package repository
