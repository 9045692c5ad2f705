// Command maniplink drives a dual micromanipulator motion platform over
// its TCP control protocol.
package main

import (
	"os"

	"github.com/mittag-lab/maniplink/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
