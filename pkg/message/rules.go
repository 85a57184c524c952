package message

import "github.com/player-project/playerd/pkg/wire"

// Any is the wildcard value for ReplaceRule fields.
const Any = -1

// ReplaceAction is what a queue does with a message matching a rule.
type ReplaceAction uint8

const (
	// ActionAccept appends the message.
	ActionAccept ReplaceAction = iota
	// ActionReplace evicts the newest queued message of the same signature
	// and appends.
	ActionReplace
	// ActionIgnore discards the message.
	ActionIgnore
)

// String returns the action name.
func (a ReplaceAction) String() string {
	switch a {
	case ActionAccept:
		return "accept"
	case ActionReplace:
		return "replace"
	case ActionIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// ReplaceRule overrides the default replace policy for DATA and CMD
// messages matching every non-wildcard field.
type ReplaceRule struct {
	Interface int
	Index     int
	Type      int
	Subtype   int
	Action    ReplaceAction
}

// Match reports whether the rule covers hdr.
func (r ReplaceRule) Match(hdr wire.Header) bool {
	return (r.Interface == Any || r.Interface == int(hdr.Interface)) &&
		(r.Index == Any || r.Index == int(hdr.Index)) &&
		(r.Type == Any || r.Type == int(hdr.Type)) &&
		(r.Subtype == Any || r.Subtype == int(hdr.Subtype))
}

// AddReplaceRule appends a rule. Earlier rules take precedence.
func (q *Queue) AddReplaceRule(rule ReplaceRule) {
	q.mu.Lock()
	q.rules = append(q.rules, rule)
	q.mu.Unlock()
}

// ClearReplaceRules removes every rule.
func (q *Queue) ClearReplaceRules() {
	q.mu.Lock()
	q.rules = nil
	q.mu.Unlock()
}

// checkReplace picks the action for hdr. Requests, responses and SYNCH are
// always accepted. Caller holds q.mu.
func (q *Queue) checkReplace(hdr wire.Header) ReplaceAction {
	if hdr.Type != wire.MsgData && hdr.Type != wire.MsgCmd {
		return ActionAccept
	}
	for _, r := range q.rules {
		if r.Match(hdr) {
			return r.Action
		}
	}
	if q.replace {
		return ActionReplace
	}
	return ActionAccept
}
