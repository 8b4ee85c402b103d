package reactive

// Action identifies the kind of mutation applied to a reactive value.
type Action string

const (
	// ActionSet assigns a field or index.
	ActionSet Action = "set"
	// ActionDelete removes a field (or clears an index).
	ActionDelete Action = "delete"

	ActionCopyWithin Action = "copyWithin"
	ActionFill       Action = "fill"
	ActionPop        Action = "pop"
	ActionPush       Action = "push"
	ActionShift      Action = "shift"
	ActionUnshift    Action = "unshift"
	ActionSplice     Action = "splice"
	ActionSort       Action = "sort"
	ActionReverse    Action = "reverse"
)

// ObjectMutations lists the record-class actions.
var ObjectMutations = []Action{ActionSet, ActionDelete}

// ArrayMutations lists the sequence operations that are intercepted.
var ArrayMutations = []Action{
	ActionCopyWithin,
	ActionFill,
	ActionPop,
	ActionPush,
	ActionShift,
	ActionUnshift,
	ActionSplice,
	ActionSort,
	ActionReverse,
}

// IsSequence reports whether the action is an ordered-sequence operation.
func (a Action) IsSequence() bool {
	for _, m := range ArrayMutations {
		if m == a {
			return true
		}
	}
	return false
}

// Valid reports whether the action is known.
func (a Action) Valid() bool {
	return a == ActionSet || a == ActionDelete || a.IsSequence()
}
