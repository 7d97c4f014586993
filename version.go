package main

import (
	"fmt"

	"github.com/any-hub/unzip-hub/internal/version"
)

func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}
