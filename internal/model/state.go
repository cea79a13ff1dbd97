package model

import "errors"

// State is the shared lifecycle vocabulary for files and nodes.
type State string

const (
	StateDiscovered State = "discovered"
	StateParsing    State = "parsing"
	StateParsed     State = "parsed"
	StateRelations  State = "relations"
	StateLinked     State = "linked"
	StateEntities   State = "entities"
	StateEmbedding  State = "embedding"
	StateEmbedded   State = "embedded"
	StateReady      State = "ready"
	StateError      State = "error"
)

// ErrInvalidTransition is returned when a requested state transition is not
// present in the allowed-transition table.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrorType identifies which pipeline phase moved a file to the error state.
type ErrorType string

const (
	ErrorTypeParse     ErrorType = "parse"
	ErrorTypeRelations ErrorType = "relations"
	ErrorTypeEntities  ErrorType = "entities"
	ErrorTypeEmbed     ErrorType = "embed"
)

// IntermediateStates are the file states that must not survive a process
// exit. Recovery resets files found in any of them back to discovered.
var IntermediateStates = []State{
	StateParsing,
	StateRelations,
	StateEntities,
	StateEmbedding,
}

// fileTransitions is the allowed-transition table for File nodes.
// Any state may additionally transition to error.
var fileTransitions = map[State][]State{
	StateDiscovered: {StateParsing},
	StateParsing:    {StateParsed, StateDiscovered},
	StateParsed:     {StateRelations, StateDiscovered},
	StateRelations:  {StateLinked, StateDiscovered},
	StateLinked:     {StateEntities, StateEmbedding, StateEmbedded},
	StateEntities:   {StateEmbedding, StateDiscovered},
	StateEmbedding:  {StateEmbedded, StateDiscovered},
	StateEmbedded:   {StateDiscovered},
	StateError:      {StateDiscovered},
}

// CanTransition reports whether a File may move from one state to another.
func CanTransition(from, to State) bool {
	if to == StateError {
		return true
	}
	for _, allowed := range fileTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionSources returns every state from which a File may legally reach
// the target state. Used to build atomic guarded updates.
func TransitionSources(to State) []State {
	var sources []State
	for from := range fileTransitions {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// AllStates lists the file state vocabulary in pipeline order.
var AllStates = []State{
	StateDiscovered,
	StateParsing,
	StateParsed,
	StateRelations,
	StateLinked,
	StateEntities,
	StateEmbedding,
	StateEmbedded,
	StateError,
}
