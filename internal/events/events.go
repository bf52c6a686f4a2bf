package events

import (
	"context"

	"github.com/alfredjeanlab/crater/internal/model"
)

// Event topic constants
const (
	TopicTaskScheduled = "crater.task.scheduled"
	TopicTaskCompleted = "crater.task.completed"
	TopicTaskFailed    = "crater.task.failed"
	TopicTaskException = "crater.task.exception"

	// TopicTaskAll matches every task lifecycle topic.
	TopicTaskAll = "crater.task.>"

	// TopicAll matches every crater topic.
	TopicAll = "crater.>"

	TopicResultRecorded       = "crater.result.recorded"
	TopicCustomBuildRequested = "crater.custom_build.requested"
	TopicCrateBuildsRequested = "crater.crate_builds.requested"
)

// Event types

type TaskScheduled struct {
	Task *model.BuildTask `json:"task"`
}

// TaskFinished is published by build workers on the completed, failed and
// exception topics. Reason is set for exceptions only.
type TaskFinished struct {
	TaskID    string `json:"task_id"`
	Toolchain string `json:"toolchain"`
	CrateName string `json:"crate_name"`
	CrateVers string `json:"crate_vers"`
	Reason    string `json:"reason,omitempty"`
}

type ResultRecorded struct {
	Result *model.BuildResult `json:"result"`
}

type CustomBuildRequested struct {
	Toolchain string `json:"toolchain"`
	URL       string `json:"url"`
	Commit    string `json:"commit"`
	TaskID    string `json:"task_id"`
}

type CrateBuildsRequested struct {
	Toolchain      string `json:"toolchain"`
	MostRecentOnly bool   `json:"most_recent_only"`
	Tasks          int    `json:"tasks"`
}

// Message is a raw payload received from the bus along with its topic.
type Message struct {
	Topic string
	Data  []byte
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
