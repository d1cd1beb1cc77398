package repository

// Table name constants, matching the entities' TableName methods.
const (
	tableTransformers = "transformers"
	tableInspections  = "inspections"
	tableImages       = "images"
	tableAnnotations  = "annotations"
)
