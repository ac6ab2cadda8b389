package pipeline

// Stage names a pipeline step.
type Stage string

// Pipeline stages in execution order.
const (
	StageScan             Stage = "SCAN"
	StageParse            Stage = "PARSE"
	StageMethaneOutputs   Stage = "METHANE_OUTPUTS"
	StagePrepare          Stage = "PREPARE"
	StageMatch            Stage = "MATCH"
	StageWrite            Stage = "WRITE"
	StageEncroachmentCopy Stage = "ENCROACHMENT_COPY"
	StageRename           Stage = "RENAME"
	StageSort             Stage = "SORT"
	StageFlatten          Stage = "FLATTEN"
	StageDone             Stage = "DONE"
	StageCancelled        Stage = "CANCELLED"
	StageFailed           Stage = "FAILED"
)

// band is the percent range a stage reports within.
type band struct{ from, to int }

var stageBands = map[Stage]band{
	StageScan:             {0, 5},
	StageParse:            {5, 10},
	StageMethaneOutputs:   {10, 15},
	StagePrepare:          {15, 25},
	StageMatch:            {25, 50},
	StageWrite:            {50, 80},
	StageEncroachmentCopy: {80, 85},
	StageRename:           {85, 90},
	StageSort:             {90, 95},
	StageFlatten:          {95, 99},
	StageDone:             {100, 100},
}

// at maps done/total onto the stage band.
func (b band) at(done, total int) int {
	if total <= 0 || done >= total {
		return b.to
	}
	if done <= 0 {
		return b.from
	}
	return b.from + (b.to-b.from)*done/total
}

var stageMessages = map[Stage]string{
	StageScan:             "Scanning inputs",
	StageParse:            "Parsing sensor logs",
	StageMethaneOutputs:   "Writing cleaned sensor logs",
	StagePrepare:          "Preparing photos",
	StageMatch:            "Matching photos to sensor records",
	StageWrite:            "Writing photo metadata",
	StageEncroachmentCopy: "Copying encroachment set",
	StageRename:           "Renaming outputs",
	StageSort:             "Sorting outputs by PPM",
	StageFlatten:          "Flattening outputs",
	StageDone:             "Done",
}
