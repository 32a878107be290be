package node

import (
	"context"
	"log"
	"os"
)

// Rotator is a log sink that can start a new file on demand.
type Rotator interface {
	Rotate() error
}

// WatchHangup rotates every sink each time hup delivers, until ctx ends.
func WatchHangup(ctx context.Context, hup <-chan os.Signal, sinks ...Rotator) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			for _, s := range sinks {
				if err := s.Rotate(); err != nil {
					log.Printf("Log rotation failed: %v", err)
				}
			}
			log.Println("Logs rotated")
		}
	}
}
