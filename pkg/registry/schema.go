package registry

// Status tracks how far a worker implementation has progressed.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusDeprecated Status = "deprecated"
)

func (s Status) Known() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusDeprecated:
		return true
	}
	return false
}

// Schema is a JSON Schema document kept in its decoded form.
type Schema = map[string]interface{}

// ActivityRegistry is the on-disk catalog of job worker task types.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one task type: its variable contracts, the BPMN error
// codes it may throw and its broker timeout and retry budget.
type Activity struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"displayName"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Version      string   `json:"version"`
	TaskType     string   `json:"taskType"`
	Status       Status   `json:"implementationStatus"`
	InputSchema  Schema   `json:"inputSchema"`
	OutputSchema Schema   `json:"outputSchema"`
	ErrorCodes   []string `json:"errorCodes"`
	Timeout      string   `json:"timeout"`
	Retries      int      `json:"retries"`
	Workflows    []string `json:"workflows,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}
