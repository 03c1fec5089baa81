package main

import (
	"github.com/loykin/mongorun/cmd/mongorun/commands"
)

func main() {
	if err := commands.NewRootCmd(nil).Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
