// The main package for the firmlight-worker executable.
package main

import (
	"github.com/JakeFAU/firmlight-worker/cmd"
)

func main() {
	cmd.Execute()
}
