package main

import (
	"github.com/anmolg1997/kg-rag/internal/cli"
)

func main() {
	cli.Execute()
}
