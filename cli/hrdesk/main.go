package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	hrdeskcmder "github.com/papercomputeco/hrdesk/cmd/hrdesk"
	"github.com/papercomputeco/hrdesk/cmd/hrdesk/cmdutil"
)

func main() {
	// API keys may live in a .env next to the working directory.
	_ = godotenv.Load()

	cmd := hrdeskcmder.NewHrdeskCmd()
	if err := cmd.Execute(); err != nil {
		if hint := cmdutil.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(cmdutil.ExitCode(err))
	}
}
