package entities

import (
	"slices"
	"strings"
)

// Region is the distribution area a transformer belongs to.
type Region string

const (
	RegionNugegoda      Region = "NUGEGODA"
	RegionMaharagama    Region = "MAHARAGAMA"
	RegionKotte         Region = "KOTTE"
	RegionDehiwala      Region = "DEHIWALA"
	RegionRajagiriya    Region = "RAJAGIRIYA"
	RegionNawala        Region = "NAWALA"
	RegionBattaramulla  Region = "BATTARAMULLA"
	RegionPelawatte     Region = "PELAWATTE"
	RegionBoralesgamuwa Region = "BORALESGAMUWA"
)

// Regions lists every known region in declaration order.
var Regions = []Region{
	RegionNugegoda, RegionMaharagama, RegionKotte, RegionDehiwala, RegionRajagiriya,
	RegionNawala, RegionBattaramulla, RegionPelawatte, RegionBoralesgamuwa,
}

// TransformerType classifies a transformer.
type TransformerType string

const (
	TransformerTypeBulk         TransformerType = "BULK"
	TransformerTypeDistribution TransformerType = "DISTRIBUTION"
)

var TransformerTypes = []TransformerType{TransformerTypeBulk, TransformerTypeDistribution}

// InspectionStatus is the progress state of an inspection. Any status may follow any other.
type InspectionStatus string

const (
	InspectionInProgress InspectionStatus = "IN_PROGRESS"
	InspectionCompleted  InspectionStatus = "COMPLETED"
	InspectionMissing    InspectionStatus = "MISSING"
	InspectionCancelled  InspectionStatus = "CANCELLED"
)

var InspectionStatuses = []InspectionStatus{
	InspectionInProgress, InspectionCompleted, InspectionMissing, InspectionCancelled,
}

// EnvCondition is the weather at capture time.
type EnvCondition string

const (
	EnvSunny  EnvCondition = "SUNNY"
	EnvCloudy EnvCondition = "CLOUDY"
	EnvRainy  EnvCondition = "RAINY"
)

var EnvConditions = []EnvCondition{EnvSunny, EnvCloudy, EnvRainy}

// ImageType distinguishes reference captures from maintenance captures.
type ImageType string

const (
	ImageBaseline    ImageType = "BASELINE"
	ImageMaintenance ImageType = "MAINTENANCE"
)

var ImageTypes = []ImageType{ImageBaseline, ImageMaintenance}

// AnnotationType records the provenance of an annotation's current state.
type AnnotationType string

const (
	AnnotationAutoDetected  AnnotationType = "AUTO_DETECTED"
	AnnotationUserAdded     AnnotationType = "USER_ADDED"
	AnnotationUserEdited    AnnotationType = "USER_EDITED"
	AnnotationUserDeleted   AnnotationType = "USER_DELETED"
	AnnotationUserConfirmed AnnotationType = "USER_CONFIRMED"
)

var AnnotationTypes = []AnnotationType{
	AnnotationAutoDetected, AnnotationUserAdded, AnnotationUserEdited,
	AnnotationUserDeleted, AnnotationUserConfirmed,
}

// UserModifiedTypes are the types produced by a user changing the annotation set.
var UserModifiedTypes = []AnnotationType{
	AnnotationUserAdded, AnnotationUserEdited, AnnotationUserDeleted,
}

// normalizeEnum upper-cases s and accepts spaces or dashes in place of underscores.
func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func parseEnum[T ~string](s string, valid []T) (T, bool) {
	v := T(normalizeEnum(s))
	if slices.Contains(valid, v) {
		return v, true
	}
	var zero T
	return zero, false
}

// ParseRegion parses a region name case-insensitively.
func ParseRegion(s string) (Region, bool) { return parseEnum(s, Regions) }

// ParseTransformerType parses a transformer type case-insensitively.
func ParseTransformerType(s string) (TransformerType, bool) {
	return parseEnum(s, TransformerTypes)
}

// ParseInspectionStatus accepts "in progress", "in-progress" and "IN_PROGRESS" alike.
func ParseInspectionStatus(s string) (InspectionStatus, bool) {
	return parseEnum(s, InspectionStatuses)
}

func ParseEnvCondition(s string) (EnvCondition, bool) { return parseEnum(s, EnvConditions) }

func ParseImageType(s string) (ImageType, bool) { return parseEnum(s, ImageTypes) }

func ParseAnnotationType(s string) (AnnotationType, bool) {
	return parseEnum(s, AnnotationTypes)
}
