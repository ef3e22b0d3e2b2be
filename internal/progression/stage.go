package progression

import "github.com/aman-zulfiqar/solana-task-rewards/internal/models"

type stageThreshold struct {
	minLevel int
	stage    models.Stage
}

// ordered by minLevel ascending
var stageTable = []stageThreshold{
	{1, models.StageSpark},
	{3, models.StageEmber},
	{5, models.StageFlame},
	{8, models.StageBlaze},
	{12, models.StageNova},
	{20, models.StageSupernova},
}

// StageFor maps a level to its display stage.
func StageFor(level int) models.Stage {
	stage := stageTable[0].stage
	for _, t := range stageTable {
		if level < t.minLevel {
			break
		}
		stage = t.stage
	}
	return stage
}

// NextStage returns the next stage above level and the level it starts at,
// or ok=false at the top of the table.
func NextStage(level int) (stage models.Stage, atLevel int, ok bool) {
	for _, t := range stageTable {
		if t.minLevel > level {
			return t.stage, t.minLevel, true
		}
	}
	return "", 0, false
}
