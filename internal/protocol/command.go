// Package protocol implements the text command protocol spoken over a
// session: "<credential> <VERB> [args...]" in, one text reply out.
package protocol

import "strings"

type Verb string

const (
	VerbURL        Verb = "URL"
	VerbJSONData   Verb = "JSONDATA"
	VerbJSONLatest Verb = "JSONLATEST"
	VerbJSONRecord Verb = "JSONRECORD"
	VerbBinRecord  Verb = "BINRECORD"
	VerbShutdown   Verb = "SHUTDOWN"
)

// Known reports whether v is a recognised verb.
func (v Verb) Known() bool {
	switch v {
	case VerbURL, VerbJSONData, VerbJSONLatest, VerbJSONRecord, VerbBinRecord, VerbShutdown:
		return true
	}
	return false
}

// Command is one parsed message.
type Command struct {
	Credential string
	Verb       Verb
	Args       []string
}

// Parse splits line into a Command. Lines that are empty or shorter than
// minLen, and lines with fewer than two tokens, fail with *ProtocolError.
func Parse(line string, minLen int) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || len(line) < minLen {
		return Command{}, &ProtocolError{Reply: ReplyEmpty}
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Command{}, &ProtocolError{Reply: ReplyTooFewArgs}
	}

	return Command{
		Credential: fields[0],
		Verb:       Verb(strings.ToUpper(fields[1])),
		Args:       fields[2:],
	}, nil
}
