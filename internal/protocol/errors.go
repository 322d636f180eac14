package protocol

// Fixed reply texts.
const (
	ReplyEmpty       = "INVALID Empty message not allowed"
	ReplyTooFewArgs  = "Expected at least two arguments"
	ReplyBadPassword = "Invalid Password"
	ReplyURLLatest   = "URL latest"
	ReplyBadWeek     = "INVALID week given"
	ReplyUnknownVerb = "INVALID request"
	ReplyShutdown    = "SHUTDOWN draining"
	ReplyRateLimited = "INVALID rate limit exceeded"
)

// ProtocolError is a malformed command line. Its message is the reply.
type ProtocolError struct {
	Reply string
}

func (e *ProtocolError) Error() string { return e.Reply }

// AuthError is a credential mismatch.
type AuthError struct{}

func (e *AuthError) Error() string { return ReplyBadPassword }
