package main

import (
	"os"

	"github.com/dirgate/dirgate/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
