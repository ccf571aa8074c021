package main

import (
	"os"

	"github.com/subhobhai943/termux-ai-tool/internal/cli"
)

func main() {
	os.Exit(cli.NewApp().Run(os.Args[1:]))
}
