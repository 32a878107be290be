package node

import (
	"errors"
	"log"
	"os"

	"github.com/radio-control/lorabridge/internal/adapter"
	"github.com/radio-control/lorabridge/internal/config"
)

// Fatal applies the configured policy to a start-up failure. Radio set-up
// failures log StartupFailure first. Under FatalHalt the node stays up
// without its radio until stop delivers; otherwise exit is called with 1.
func Fatal(err error, policy string, stop <-chan os.Signal, exit func(int)) {
	var initErr *adapter.InitError
	if errors.As(err, &initErr) {
		log.Println(StartupFailure)
	}
	log.Printf("Fatal: %v", err)

	if policy != config.FatalHalt {
		exit(1)
		return
	}
	log.Println("Halted; waiting for a stop signal")
	sig := <-stop
	log.Printf("Received signal %v while halted", sig)
	exit(1)
}
