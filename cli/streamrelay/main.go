package main

import (
	"os"

	streamrelaycmder "github.com/streamrelay/streamrelay/cmd/streamrelay"
)

func main() {
	cmd := streamrelaycmder.NewStreamRelayCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
