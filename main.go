package main

import (
	"os"

	"github.com/liamg/portaudit/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
