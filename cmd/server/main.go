package main

import (
	"flag"
	"log"

	approuters "Chatline/internal/app_routers"
	"Chatline/internal/configuration"
)

func main() {
	configPath := flag.String("config", "shared/config.dev.json", "path to the JSON config file")
	flag.Parse()

	container, err := configuration.BuildContainer(*configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	// Setup routers
	approuters.StartServer(container)
}
