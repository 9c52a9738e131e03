package feed

import (
	"time"
)

// MessageType identifies the role of a message in the session transcript
type MessageType string

const (
	MessageTypeUser     MessageType = "user"
	MessageTypeAgent    MessageType = "agent"
	MessageTypeError    MessageType = "error"
	MessageTypeBudget   MessageType = "budget"
	MessageTypeTool     MessageType = "tool"
	MessageTypeCommit   MessageType = "commit"
	MessageTypeAuto     MessageType = "auto"
	MessageTypeExternal MessageType = "external"
)

// AgentMessage is one entry in the session transcript. Identity is Idx;
// the server may redeliver an Idx with fuller content as a streaming
// message completes.
type AgentMessage struct {
	Type      MessageType `json:"type"`
	EndOfTurn bool        `json:"end_of_turn"`

	Content    string `json:"content"`
	ToolName   string `json:"tool_name,omitempty"`
	ToolInput  string `json:"input,omitempty"`
	ToolResult string `json:"tool_result,omitempty"`
	ToolError  bool   `json:"tool_error,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls lists every tool call requested in this message
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Commits carried by a commit message
	Commits []*GitCommit `json:"commits,omitempty"`

	Timestamp            time.Time `json:"timestamp"`
	ConversationID       string    `json:"conversation_id"`
	ParentConversationID *string   `json:"parent_conversation_id,omitempty"`
	Usage                *Usage    `json:"usage,omitempty"`

	StartTime *time.Time     `json:"start_time,omitempty"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Elapsed   *time.Duration `json:"elapsed,omitempty"`

	// TurnDuration is the time taken for a complete agent turn
	TurnDuration *time.Duration `json:"turnDuration,omitempty"`

	Idx int `json:"idx"`

	// HideOutput marks messages from nested sub-conversations that should
	// not be shown in the main transcript
	HideOutput bool `json:"hide_output,omitempty"`

	// Workflow is set on external messages that report a CI workflow run
	Workflow *WorkflowPayload `json:"workflow,omitempty"`
}

// Hidden reports whether the message belongs to a nested sub-conversation
// or is otherwise excluded from the main transcript.
func (m AgentMessage) Hidden() bool {
	return m.HideOutput || m.ParentConversationID != nil
}

// ToolCall is a single tool invocation within an agent message. The
// result arrives later and is matched by ToolCallID, never by position.
type ToolCall struct {
	Name          string        `json:"name"`
	Input         string        `json:"input"`
	ToolCallID    string        `json:"tool_call_id"`
	ResultMessage *AgentMessage `json:"result_message,omitempty"`
	Args          string        `json:"args,omitempty"`
	Result        string        `json:"result,omitempty"`
}

// GitCommit is a single commit announced by a commit message
type GitCommit struct {
	Hash         string `json:"hash"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	PushedBranch string `json:"pushed_branch,omitempty"`
}

// WorkflowPayload describes a CI workflow run attached to an external
// message. Branch and CommitHash together identify the run's group.
type WorkflowPayload struct {
	Name       string    `json:"name"`
	Branch     string    `json:"branch"`
	CommitHash string    `json:"commit_hash"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion,omitempty"`
	URL        string    `json:"url,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// State is the server's snapshot of the whole session. It is replaced
// wholesale on each state frame, never partially merged.
type State struct {
	StateVersion         int      `json:"state_version"`
	MessageCount         int      `json:"message_count"`
	TotalUsage           *Usage   `json:"total_usage,omitempty"`
	InitialCommit        string   `json:"initial_commit"`
	Slug                 string   `json:"slug,omitempty"`
	BranchName           string   `json:"branch_name,omitempty"`
	Hostname             string   `json:"hostname"`
	WorkingDir           string   `json:"working_dir"`
	OS                   string   `json:"os"`
	GitOrigin            string   `json:"git_origin,omitempty"`
	OutstandingLLMCalls  int      `json:"outstanding_llm_calls"`
	OutstandingToolCalls []string `json:"outstanding_tool_calls"`
	SessionID            string   `json:"session_id"`
	InContainer          bool     `json:"in_container"`
	FirstMessageIndex    int      `json:"first_message_index"`
	AgentState           string   `json:"agent_state,omitempty"`
	DiffLinesAdded       int      `json:"diff_lines_added"`
	DiffLinesRemoved     int      `json:"diff_lines_removed"`
	OpenPorts            []Port   `json:"open_ports,omitempty"`
	TokenContextWindow   int      `json:"token_context_window,omitempty"`
	Model                string   `json:"model,omitempty"`
	SessionEnded         bool     `json:"session_ended,omitempty"`
	CanSendMessages      bool     `json:"can_send_messages,omitempty"`
}

// Usage summarizes cumulative model usage for the session
type Usage struct {
	StartTime                time.Time      `json:"start_time,omitempty"`
	Messages                 int            `json:"messages,omitempty"`
	InputTokens              uint64         `json:"input_tokens,omitempty"`
	OutputTokens             uint64         `json:"output_tokens,omitempty"`
	CacheReadInputTokens     uint64         `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens uint64         `json:"cache_creation_input_tokens,omitempty"`
	TotalCostUSD             float64        `json:"total_cost_usd,omitempty"`
	ToolUses                 map[string]int `json:"tool_uses,omitempty"`
}

// Port is an open TCP or UDP port reported in the state snapshot
type Port struct {
	Proto   string `json:"proto"`
	Port    uint16 `json:"port"`
	Process string `json:"process"`
	Pid     int    `json:"pid"`
}
