package drawcli

import (
	"io"
	"time"
)

// Config holds configuration for one CLI run.
type Config struct {
	BaseURL     string        // Base URL of a running server; ignored with Local
	Local       bool          // Draw in process instead of over HTTP
	CatalogPath string        // Menu for local runs; empty uses the embedded one
	Seed        uint64        // Random seed for local runs; zero seeds from the clock
	Draws       int           // Number of draws
	Workers     int           // Concurrent draw workers
	Spin        bool          // Stream one spinning session instead of plain draws
	Stats       bool          // Print the uniformity report after the draws
	Timeout     time.Duration // HTTP request timeout
	Verbose     bool          // Log every draw
	Out         io.Writer     // Where results are printed
}

// Summary holds the outcome of a run.
type Summary struct {
	Requested int
	Succeeded int
	Failed    int
	StartTime time.Time
	Duration  time.Duration
}
