package bot

import "strings"

// Command names understood by the handler.
const (
	CmdStart        = "start"
	CmdBalance      = "balance"
	CmdTransfer     = "transfer"
	CmdAddTokens    = "addtokens"
	CmdRemoveTokens = "removetokens"
	CmdHelp         = "help"
)

// Command is a parsed chat command.
type Command struct {
	Name string
	// Fields holds every whitespace-separated token including the command
	// itself, so a well-formed "/transfer @bob 5" has three fields.
	Fields []string
}

// Args returns the fields after the command.
func (c Command) Args() []string {
	if len(c.Fields) == 0 {
		return nil
	}
	return c.Fields[1:]
}

// ParseCommand splits text into a command. It reports false for text that
// is not a command or that addresses a different bot ("/cmd@OtherBot").
// An empty botName accepts any addressee. Command names are matched
// case-insensitively and returned lower-cased.
func ParseCommand(text, botName string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}

	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		addressee := name[i+1:]
		name = name[:i]
		if botName != "" && !strings.EqualFold(addressee, botName) {
			return Command{}, false
		}
	}
	if name == "" {
		return Command{}, false
	}

	return Command{Name: strings.ToLower(name), Fields: fields}, true
}
