package feed

import (
	"sort"
)

// Aggregate folds a batch of incoming message deltas into an existing
// transcript and returns a new slice. Neither input is mutated, so
// callers holding a previous snapshot keep observing it unchanged.
//
// A delta whose Idx matches an existing entry replaces that entry in
// place; this is how a streaming message is completed by a later,
// fuller version. A new Idx is inserted in sorted position (the server
// delivers new indexes ascending, so this is normally an append). The
// result is always sorted by Idx with no duplicates, and replaying the
// same batch is a no-op.
func Aggregate(existing, incoming []AgentMessage) []AgentMessage {
	merged := make([]AgentMessage, len(existing))
	copy(merged, existing)

	for _, msg := range incoming {
		pos := sort.Search(len(merged), func(i int) bool {
			return merged[i].Idx >= msg.Idx
		})
		if pos < len(merged) && merged[pos].Idx == msg.Idx {
			merged[pos] = mergeMessage(merged[pos], msg)
			continue
		}
		merged = append(merged, AgentMessage{})
		copy(merged[pos+1:], merged[pos:])
		merged[pos] = msg
	}

	return merged
}

// mergeMessage replaces prev with next but keeps any tool result that
// prev already carries and next lacks: a result, once attached, is
// never removed by a redelivered earlier version of the same message.
func mergeMessage(prev, next AgentMessage) AgentMessage {
	if len(prev.ToolCalls) == 0 || len(next.ToolCalls) == 0 {
		return next
	}

	carried := false
	for i := range next.ToolCalls {
		if next.ToolCalls[i].ResultMessage != nil {
			continue
		}
		if res := findResult(prev.ToolCalls, next.ToolCalls[i].ToolCallID); res != nil {
			if !carried {
				next.ToolCalls = append([]ToolCall(nil), next.ToolCalls...)
				carried = true
			}
			next.ToolCalls[i].ResultMessage = res
		}
	}
	return next
}

func findResult(calls []ToolCall, id string) *AgentMessage {
	if id == "" {
		return nil
	}
	for i := range calls {
		if calls[i].ToolCallID == id {
			return calls[i].ResultMessage
		}
	}
	return nil
}
