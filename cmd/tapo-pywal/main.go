package main

import (
	"fmt"
	"os"

	"github.com/d0ksan8/tapo-pywal/cmd/tapo-pywal/internal"
)

func main() {
	if err := internal.RootCmd.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
