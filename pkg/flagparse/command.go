package flagparse

import (
	"fmt"

	"github.com/paulschiretz/pgl-vault/pkg/util"
)

// Command defines the subcommand to execute.
type Command int

const (
	None Command = iota
	Backup
	Init
	Log
	Version
)

var commandToString = map[Command]string{
	None:    "none",
	Backup:  "backup",
	Init:    "init",
	Log:     "log",
	Version: "version",
}

var stringToCommand = util.InvertMap(commandToString)

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'backup', 'init', 'log', or 'version'", s)
}
