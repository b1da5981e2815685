/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command mappeddb inspects schema definition files and works with the
// tables and items they describe.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(defaultClient).Execute(); err != nil {
		os.Exit(1)
	}
}
