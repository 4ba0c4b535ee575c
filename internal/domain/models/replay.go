package models

// ReplayState describes the playhead of a chart session in replay mode.
//
// CurrentStep is a 1-based position into the ascending candle series;
// 0 means "nothing revealed yet". Invariant: 0 <= CurrentStep <= TotalSteps,
// and CurrentStep == TotalSteps whenever replay is disabled (full reveal).
type ReplayState struct {
	Enabled           bool    `json:"enabled"`
	Playing           bool    `json:"playing"`
	Speed             float64 `json:"speed"`
	CurrentStep       int     `json:"current_step"`
	TotalSteps        int     `json:"total_steps"`
	Animate           bool    `json:"animate"`
	AnimationProgress float64 `json:"animation_progress"` // 0..1, 1 = candle fully formed
}
