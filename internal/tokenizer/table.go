package tokenizer

import "fmt"

// State is the lexical state of a Tokenizer.
type State uint8

const (
	StateStart State = iota
	StateInTag
	StateInDoubleAttrValue
	StateInSingleAttrValue
	StateAfterBang
	StateAfterDash1
	StateAfterDash2
	StateInComment
	StateInText
	StateClosed
	numStates
)

var stateNames = [numStates]string{
	StateStart:             "START",
	StateInTag:             "IN_TAG",
	StateInDoubleAttrValue: "IN_DOUBLE_ATTR_VALUE",
	StateInSingleAttrValue: "IN_SINGLE_ATTR_VALUE",
	StateAfterBang:         "AFTER_BANG",
	StateAfterDash1:        "AFTER_DASH1",
	StateAfterDash2:        "AFTER_DASH2",
	StateInComment:         "IN_COMMENT",
	StateInText:            "IN_TEXT",
	StateClosed:            "CLOSED",
}

// String returns the state name.
func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// charClass groups bytes that behave identically in every state.
type charClass uint8

const (
	classOther  charClass = iota // everything else
	classLAngle                  // <
	classRAngle                  // >
	classSlash                   // /
	classEquals                  // =
	classDQuote                  // "
	classSQuote                  // '
	classBang                    // !
	classDash                    // -
	classSpace                   // space, \t, \r, \n
	numCharClasses
)

// action is what the tokenizer does on a transition.
type action uint8

const (
	actionExtend       action = iota // byte joins the pending run
	actionMarker                     // emit the byte as a structural token
	actionFlushMarker                // emit the pending span if non-empty, then the byte
	actionFlushOrSkip                // emit the pending span if non-empty, else move the boundary past the byte
	actionSkip                       // move the boundary past the byte
	actionValue                      // emit the pending span as an attribute value
	actionCommentOpen                // emit !-- and move the boundary past the byte
	actionCommentClose               // emit the comment run without its -- terminator, then >
	actionFail                       // malformed markup
)

// transition represents a state transition
type transition struct {
	next   State
	action action
}

// charClassTable is a 256-entry lookup table for byte classification
var charClassTable [256]charClass

// transitions is the state transition table
// [currentState][charClass] -> (nextState, action)
var transitions [numStates][numCharClasses]transition

// spanKinds maps the state a span was collected in to the kind it is emitted as.
var spanKinds = [numStates]string{
	StateInTag:             TokenName,
	StateInDoubleAttrValue: TokenAttrValue,
	StateInSingleAttrValue: TokenAttrValue,
	StateInComment:         TokenComment,
	StateInText:            TokenText,
}

func init() {
	initCharClassTable()
	initTransitions()
}

func initCharClassTable() {
	charClassTable['<'] = classLAngle
	charClassTable['>'] = classRAngle
	charClassTable['/'] = classSlash
	charClassTable['='] = classEquals
	charClassTable['"'] = classDQuote
	charClassTable['\''] = classSQuote
	charClassTable['!'] = classBang
	charClassTable['-'] = classDash
	charClassTable[' '] = classSpace
	charClassTable['\t'] = classSpace
	charClassTable['\r'] = classSpace
	charClassTable['\n'] = classSpace
}

// fill sets every class of a state to the same transition.
func fill(s State, tr transition) {
	for c := charClass(0); c < numCharClasses; c++ {
		transitions[s][c] = tr
	}
}

func initTransitions() {
	fill(StateStart, transition{StateInText, actionExtend})
	transitions[StateStart][classLAngle] = transition{StateInTag, actionMarker}

	fill(StateInText, transition{StateInText, actionExtend})
	transitions[StateInText][classLAngle] = transition{StateInTag, actionFlushMarker}

	fill(StateInTag, transition{StateInTag, actionExtend})
	transitions[StateInTag][classSlash] = transition{StateInTag, actionFlushMarker}
	transitions[StateInTag][classRAngle] = transition{StateStart, actionFlushMarker}
	transitions[StateInTag][classSpace] = transition{StateInTag, actionFlushOrSkip}
	transitions[StateInTag][classEquals] = transition{StateInTag, actionFlushMarker}
	transitions[StateInTag][classDQuote] = transition{StateInDoubleAttrValue, actionSkip}
	transitions[StateInTag][classSQuote] = transition{StateInSingleAttrValue, actionSkip}
	transitions[StateInTag][classBang] = transition{StateAfterBang, actionExtend}

	fill(StateInDoubleAttrValue, transition{StateInDoubleAttrValue, actionExtend})
	transitions[StateInDoubleAttrValue][classDQuote] = transition{StateInTag, actionValue}

	fill(StateInSingleAttrValue, transition{StateInSingleAttrValue, actionExtend})
	transitions[StateInSingleAttrValue][classSQuote] = transition{StateInTag, actionValue}

	fill(StateAfterBang, transition{StateClosed, actionFail})
	transitions[StateAfterBang][classDash] = transition{StateAfterDash1, actionExtend}

	fill(StateAfterDash1, transition{StateClosed, actionFail})
	transitions[StateAfterDash1][classDash] = transition{StateAfterDash2, actionExtend}

	fill(StateAfterDash2, transition{StateClosed, actionFail})
	transitions[StateAfterDash2][classSpace] = transition{StateInComment, actionCommentOpen}

	fill(StateInComment, transition{StateInComment, actionExtend})
	transitions[StateInComment][classSpace] = transition{StateInComment, actionFlushOrSkip}
	transitions[StateInComment][classRAngle] = transition{StateStart, actionCommentClose}

	// CLOSED never consumes input; Feed stops before reaching the table.
	fill(StateClosed, transition{StateClosed, actionFail})
}

// step is the pure transition function of the lexer.
func step(s State, c byte) transition {
	return transitions[s][charClassTable[c]]
}
