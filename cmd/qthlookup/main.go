package main

import (
	"qthlookup/cmd/qthlookup/commands"
	"qthlookup/lib/osutil"
)

func main() {
	ctx, cancel := osutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
