package models

type Stage string

const (
	StageExtract    Stage = "extract"
	StageTranscribe Stage = "transcribe"
	StageSplit      Stage = "split"
)

var Stages = []Stage{StageExtract, StageTranscribe, StageSplit}

type stageRule struct {
	next      Stage
	jobSuffix string
	onFailure TaskUpdate
}

var stageTable = map[Stage]stageRule{
	StageExtract: {
		next:      StageTranscribe,
		jobSuffix: "__audioExtraction",
		onFailure: TaskUpdate{Status: StatusPtr(TaskStatusFailed)},
	},
	StageTranscribe: {
		next:      StageSplit,
		jobSuffix: "__audioTranscribe",
		onFailure: TaskUpdate{Status: StatusPtr(TaskStatusFailed)},
	},
	StageSplit: {
		jobSuffix: "__mediaSplit",
		onFailure: TaskUpdate{Status: StatusPtr(TaskStatusFailed), UploadStatus: StatusPtr(TaskStatusFailed)},
	},
}

func (s Stage) Valid() bool {
	_, ok := stageTable[s]
	return ok
}

// Next returns the stage that follows s, or false when s is the last one.
func (s Stage) Next() (Stage, bool) {
	r, ok := stageTable[s]
	if !ok || r.next == "" {
		return "", false
	}
	return r.next, true
}

// JobName is the human readable queue job name for a file entering stage s.
func (s Stage) JobName(filename string) string {
	return filename + stageTable[s].jobSuffix
}

// Transition is the outcome of a stage finishing.
type Transition struct {
	// Next is set when another stage must be enqueued.
	Next    Stage
	HasNext bool
	// Update is the task update to persist, nil when nothing changes.
	Update *TaskUpdate
}

// OnStageSucceeded decides what happens after stage s produced job.
func OnStageSucceeded(s Stage, job Job) Transition {
	if next, ok := s.Next(); ok {
		return Transition{Next: next, HasNext: true}
	}
	return Transition{Update: &TaskUpdate{
		Status:       StatusPtr(TaskStatusCompleted),
		UploadStatus: StatusPtr(TaskStatusCompleted),
		Outputs:      append(OutputSegments{}, job.Outputs...),
	}}
}

// OnStageFailed returns the task update for a terminal failure of stage s.
func OnStageFailed(s Stage) *TaskUpdate {
	r, ok := stageTable[s]
	if !ok {
		return &TaskUpdate{Status: StatusPtr(TaskStatusFailed)}
	}
	u := TaskUpdate{}
	if r.onFailure.Status != nil {
		u.Status = StatusPtr(*r.onFailure.Status)
	}
	if r.onFailure.UploadStatus != nil {
		u.UploadStatus = StatusPtr(*r.onFailure.UploadStatus)
	}
	return &u
}
