package main

import (
	"github.com/sib-swiss/dclust/cmd/dclust/cmd"
)

func main() {
	cmd.Execute()
}
