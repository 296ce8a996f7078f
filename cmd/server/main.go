package main

import (
	"fmt"
	"os"

	"github.com/healthtech/filemanager/internal/app"
)

func main() {
	// Create a new service
	service, err := app.NewService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize file manager: %v\n", err)
		os.Exit(1)
	}
	defer service.Cleanup()

	// Start the service
	if err := service.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start file manager: %v\n", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	service.WaitForShutdown()
}
