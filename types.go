package lumen

// TurnRole tags one message in a completion request.
type TurnRole string

const (
	TurnUser      TurnRole = "user"
	TurnAssistant TurnRole = "assistant"
)

// Turn is one prior message passed to a CompletionProvider.
type Turn struct {
	Role    TurnRole
	Content string
}

// CompletionRequest is the input to a CompletionProvider. All fields are
// primitive or stdlib types so external providers need no internal imports.
type CompletionRequest struct {
	System    string
	Turns     []Turn
	MaxTokens int
}

// Completion is the output of a CompletionProvider.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
