package main

import (
	"os"

	quotacmder "github.com/streamrelay/streamrelay/cmd/streamrelay/serve/quota"
)

func main() {
	cmd := quotacmder.NewQuotaCmd()
	cmd.Use = "quotaapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .streamrelay/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
