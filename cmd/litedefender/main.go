package main

import (
	"fmt"
	"os"
)

func main() {
	err := rootCmd.Execute()
	if cerr := shutdown(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", cerr)
	}
	if err != nil {
		if err != errReported {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
