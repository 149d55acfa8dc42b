package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/gluk-w/sshagent/internal/app"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := app.New(version).Run(os.Args); err != nil {
		log.Fatalf("Error: %s", err)
	}
}
