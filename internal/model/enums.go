package model

// ConversationStatus is the lifecycle state of a support conversation.
type ConversationStatus string

const (
	ConversationUnresolved ConversationStatus = "unresolved"
	ConversationEscalated  ConversationStatus = "escalated"
	ConversationResolved   ConversationStatus = "resolved"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationUnresolved, ConversationEscalated, ConversationResolved:
		return true
	}
	return false
}

// ConversationTrigger names an event that may move a conversation between states.
type ConversationTrigger string

const (
	// TriggerEscalate hands the conversation to a human operator.
	TriggerEscalate ConversationTrigger = "escalate"
	// TriggerResolve closes the conversation.
	TriggerResolve ConversationTrigger = "resolve"
	// TriggerReopen is the operator moving a conversation back to the AI queue.
	TriggerReopen ConversationTrigger = "reopen"
)

// transitions lists, per trigger, the states it may fire from and the state it produces.
var transitions = map[ConversationTrigger]struct {
	from []ConversationStatus
	to   ConversationStatus
}{
	TriggerEscalate: {from: []ConversationStatus{ConversationUnresolved}, to: ConversationEscalated},
	TriggerResolve:  {from: []ConversationStatus{ConversationUnresolved, ConversationEscalated}, to: ConversationResolved},
	TriggerReopen:   {from: []ConversationStatus{ConversationEscalated, ConversationResolved}, to: ConversationUnresolved},
}

// Transition returns the next state for trigger. ok is false when the trigger
// does not apply in s, in which case s is returned unchanged.
func (s ConversationStatus) Transition(trigger ConversationTrigger) (next ConversationStatus, ok bool) {
	t, known := transitions[trigger]
	if !known {
		return s, false
	}
	for _, from := range t.from {
		if from == s {
			return t.to, true
		}
	}
	return s, false
}

// AllowedFrom returns the states trigger may fire from.
func AllowedFrom(trigger ConversationTrigger) []ConversationStatus {
	return append([]ConversationStatus(nil), transitions[trigger].from...)
}

// TriggerTarget returns the state trigger produces.
func TriggerTarget(trigger ConversationTrigger) (ConversationStatus, bool) {
	t, known := transitions[trigger]
	return t.to, known
}

// TriggerTo returns the trigger that produces target, used when an operator
// sets a status directly.
func TriggerTo(target ConversationStatus) (ConversationTrigger, bool) {
	switch target {
	case ConversationEscalated:
		return TriggerEscalate, true
	case ConversationResolved:
		return TriggerResolve, true
	case ConversationUnresolved:
		return TriggerReopen, true
	}
	return "", false
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

type SubscriptionStatus string

const (
	SubscriptionActive SubscriptionStatus = "active"
)

// PluginService identifies a third-party integration an organization can connect.
type PluginService string

const (
	PluginVapi PluginService = "vapi"
)

func (s PluginService) Valid() bool {
	return s == PluginVapi
}
