package events

// Event type constants
const (
	// Stream events
	EventDataChanged             = "dataChanged"
	EventConnectionStatusChanged = "connectionStatusChanged"

	// Workflow events
	EventGroupsUpdated = "groupsUpdated"
)
