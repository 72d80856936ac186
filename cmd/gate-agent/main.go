package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/autogate/cmd/gate-agent/app"
)

func main() {
	app.NewApp().Run()
}
