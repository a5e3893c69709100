package pipeline

import "strings"

// Apology messages appended to chat history when a turn cannot produce a
// real reply.
const (
	ChatErrorApology   = "Sorry, an error occurred. Please try again."
	ChatUnclearApology = "Sorry, I received an unclear response. Please try again."
	ChatParseApology   = "Sorry, I had trouble understanding that response. Please try again."
)

// ChatFSM serializes chat submissions: at most one in flight, input
// cleared the instant a submission starts.
type ChatFSM struct {
	state ChatState
	draft string
}

// NewChatFSM creates the chatbot machine in its idle state.
func NewChatFSM() *ChatFSM {
	return &ChatFSM{state: ChatIdle}
}

func (c *ChatFSM) State() ChatState { return c.state }
func (c *ChatFSM) Draft() string    { return c.draft }

// SetDraft updates the draft text. Outside a submission the machine
// tracks typing: a non-empty draft moves to PROCESSING_USER_INPUT and an
// emptied one returns to IDLE. Draft edits during a submission never
// change state.
func (c *ChatFSM) SetDraft(text string) {
	c.draft = text
	if c.state == ChatSubmittingMessage {
		return
	}
	if strings.TrimSpace(text) == "" {
		c.state = ChatIdle
	} else {
		c.state = ChatProcessingUserInput
	}
}

// CanSubmit reports whether a submission would be accepted right now.
// Empty input, an in-flight submission, or a busy pipeline all refuse.
func (c *ChatFSM) CanSubmit(pipelineBusy bool) bool {
	return strings.TrimSpace(c.draft) != "" &&
		c.state != ChatSubmittingMessage &&
		!pipelineBusy
}

// BeginSubmission starts a chat turn. Returns the trimmed input and true
// when accepted; the draft is cleared immediately on acceptance. Refused
// submissions are a no-op.
func (c *ChatFSM) BeginSubmission(pipelineBusy bool) (string, bool) {
	if !c.CanSubmit(pipelineBusy) {
		return "", false
	}
	input := strings.TrimSpace(c.draft)
	c.draft = ""
	c.state = ChatSubmittingMessage
	return input, true
}

// ConcludeSubmission returns the machine to idle after the turn resolves,
// whether with a real reply or an apology.
func (c *ChatFSM) ConcludeSubmission() {
	c.state = ChatIdle
}
