package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errStrictViolations) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "cloudcost: %v\n", err)
		os.Exit(1)
	}
}
