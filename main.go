package main

import (
	"github.com/reportcloud/relaybot/cmd"
)

func main() {
	cmd.Execute()
}
