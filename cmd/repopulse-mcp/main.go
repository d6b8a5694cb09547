package main

import (
	"fmt"
	"os"

	"github.com/repopulse/repopulse/pkg/mcp"
)

func main() {
	apiURL := os.Getenv("REPOPULSE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}

	// stdio transport: logs must go to stderr, stdout carries the protocol.
	fmt.Fprintf(os.Stderr, `{"level":"info","msg":"mcp_started","api":"%s"}`+"\n", apiURL)

	s := mcp.NewServer(apiURL)
	if err := s.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, `{"level":"fatal","msg":"mcp_serve_failed","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
}
