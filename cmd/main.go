package main

import (
	"os"

	"github.com/soundprediction/careergraph/cmd/careergraph"
)

func main() {
	if err := careergraph.Execute(); err != nil {
		os.Exit(1)
	}
}
