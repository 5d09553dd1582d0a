// ./main.go
package main

import (
	"github.com/xkilldash9x/checkride/cmd"
)

// main is the entry point for the checkride CLI.
func main() {
	cmd.Execute()
}
