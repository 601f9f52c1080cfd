package uigen

import (
	"github.com/google/uuid"
)

// InvocationState is the lifecycle state of a tool invocation.
type InvocationState string

const (
	InvocationPending InvocationState = "pending"
	InvocationResult  InvocationState = "result"
	InvocationError   InvocationState = "error"
)

// ToolInvocation is the ephemeral record of one tool call as the UI sees it:
// created pending, then completed exactly once.
type ToolInvocation struct {
	ID       string          `json:"id"`
	ToolName string          `json:"toolName"`
	Args     ToolArgs        `json:"args"`
	State    InvocationState `json:"state"`
	Summary  string          `json:"summary"`
	Message  string          `json:"message,omitempty"`
}

// NewToolInvocation starts a pending invocation for call. Calls without an
// ID get a random one.
func NewToolInvocation(call ToolCall) *ToolInvocation {
	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &ToolInvocation{
		ID:       id,
		ToolName: call.ToolName,
		Args:     call.Args,
		State:    InvocationPending,
		Summary:  Summarize(call.ToolName, call.Args),
	}
}

// Call returns the tool call the invocation was created from.
func (inv *ToolInvocation) Call() ToolCall {
	return ToolCall{ID: inv.ID, ToolName: inv.ToolName, Args: inv.Args}
}

// Complete records the outcome. It returns false if the invocation was
// already completed.
func (inv *ToolInvocation) Complete(res ToolResult) bool {
	if inv.State != InvocationPending {
		return false
	}
	inv.Message = res.Message
	if res.Success {
		inv.State = InvocationResult
	} else {
		inv.State = InvocationError
	}
	return true
}

// Done reports whether the invocation has left the pending state.
func (inv *ToolInvocation) Done() bool { return inv.State != InvocationPending }

// Result returns the recorded outcome; ok is false while pending.
func (inv *ToolInvocation) Result() (res ToolResult, ok bool) {
	if !inv.Done() {
		return ToolResult{}, false
	}
	return ToolResult{Success: inv.State == InvocationResult, Message: inv.Message}, true
}
