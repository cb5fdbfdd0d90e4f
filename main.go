package main

import (
	"os"

	"hpcbench/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
