package main

import (
	"fmt"
	"os"

	relaycmder "github.com/streamrelay/streamrelay/cmd/streamrelay/serve/relay"
)

func main() {
	cmd := relaycmder.NewRelayCmd()

	cmd.Use = "relayproxy"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .streamrelay/ config directory")

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
