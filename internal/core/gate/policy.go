package gate

import (
	"fmt"
	"strings"
)

// WorkItemType classifies a work item and decides which task types it needs.
type WorkItemType string

const (
	TypeFeature        WorkItemType = "feature"
	TypeEnhancement    WorkItemType = "enhancement"
	TypeBugfix         WorkItemType = "bugfix"
	TypeRefactoring    WorkItemType = "refactoring"
	TypeInfrastructure WorkItemType = "infrastructure"
	TypeResearch       WorkItemType = "research"
	TypePlanning       WorkItemType = "planning"
)

// TaskType classifies a task for time-boxing and coverage checks.
type TaskType string

const (
	TaskDesign         TaskType = "design"
	TaskImplementation TaskType = "implementation"
	TaskTesting        TaskType = "testing"
	TaskDocumentation  TaskType = "documentation"
	TaskAnalysis       TaskType = "analysis"
	TaskBugfix         TaskType = "bugfix"
	TaskRefactoring    TaskType = "refactoring"
	TaskDeployment     TaskType = "deployment"
	TaskResearch       TaskType = "research"
	TaskReview         TaskType = "review"
)

var requiredTaskTypes = map[WorkItemType][]TaskType{
	TypeFeature:        {TaskDesign, TaskImplementation, TaskTesting, TaskDocumentation},
	TypeEnhancement:    {TaskDesign, TaskImplementation, TaskTesting},
	TypeBugfix:         {TaskAnalysis, TaskBugfix, TaskTesting},
	TypeRefactoring:    {TaskAnalysis, TaskRefactoring, TaskTesting},
	TypeInfrastructure: {TaskDesign, TaskDeployment, TaskTesting},
	TypeResearch:       {TaskResearch, TaskDocumentation},
	TypePlanning:       {TaskAnalysis, TaskDocumentation},
}

// timeBoxes are maximum effort hours per task type. Types without an entry are unbounded.
var timeBoxes = map[TaskType]float64{
	TaskImplementation: 4,
	TaskBugfix:         4,
	TaskDeployment:     4,
	TaskRefactoring:    4,
	TaskTesting:        6,
	TaskDocumentation:  6,
	TaskDesign:         8,
	TaskAnalysis:       8,
}

// hardTimeBoxes are task types whose time-box violation blocks a gate rather than warns.
var hardTimeBoxes = map[TaskType]bool{
	TaskImplementation: true,
}

// ParseWorkItemType validates a work item type name.
func ParseWorkItemType(s string) (WorkItemType, error) {
	t := WorkItemType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := requiredTaskTypes[t]; !ok {
		return "", fmt.Errorf("unknown work item type %q", s)
	}
	return t, nil
}

// ParseTaskType validates a task type name.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TaskDesign, TaskImplementation, TaskTesting, TaskDocumentation, TaskAnalysis,
		TaskBugfix, TaskRefactoring, TaskDeployment, TaskResearch, TaskReview:
		return t, nil
	}
	return "", fmt.Errorf("unknown task type %q", s)
}

// RequiredTaskTypes returns the task types a work item type must include.
func RequiredTaskTypes(t WorkItemType) []TaskType {
	req := requiredTaskTypes[t]
	out := make([]TaskType, len(req))
	copy(out, req)
	return out
}

// TimeBox returns the maximum effort hours for a task type.
func TimeBox(t TaskType) (float64, bool) {
	h, ok := timeBoxes[t]
	return h, ok
}

// IsHardTimeBox reports whether exceeding the type's time-box blocks the gate.
func IsHardTimeBox(t TaskType) bool {
	return hardTimeBoxes[t]
}

// CheckTimeBox evaluates a single task's effort against its type's limit.
// It returns "" when within the limit.
func CheckTimeBox(id string, t TaskType, effortHours float64) string {
	limit, ok := timeBoxes[t]
	if !ok || effortHours <= limit {
		return ""
	}
	return fmt.Sprintf("%s task %s is %gh, exceeding its %gh time-box: split it into smaller tasks", t, id, effortHours, limit)
}
