package main

import (
	"os"

	"github.com/autopeer-io/autogate/cmd/gatectl/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
