// Package command parses operator chat text into actuation commands.
package command

import "strings"

// Command is the closed set of operator requests.
type Command int

const (
	// None means the text matched no command.
	None Command = iota
	Help
	StartActuation
	StopActuation
)

// Chat command words, without the leading slash.
const (
	HelpWord  = "help"
	StartWord = "startCharging"
	StopWord  = "stopCharging"
)

var words = map[string]Command{
	"/" + HelpWord:  Help,
	"/" + StartWord: StartActuation,
	"/" + StopWord:  StopActuation,
}

// String returns the command word, or "none".
func (c Command) String() string {
	switch c {
	case Help:
		return HelpWord
	case StartActuation:
		return StartWord
	case StopActuation:
		return StopWord
	default:
		return "none"
	}
}

// Parse matches text exactly against the command words. A "@<botName>"
// suffix is accepted only when it names this bot exactly. Matching is case
// sensitive and does not trim whitespace.
func Parse(text, botName string) Command {
	if cmd, ok := words[text]; ok {
		return cmd
	}
	if botName == "" {
		return None
	}
	base, qualifier, found := strings.Cut(text, "@")
	if !found || qualifier != botName {
		return None
	}
	if cmd, ok := words[base]; ok {
		return cmd
	}
	return None
}
