package main

import (
	"github.com/robotalks/hostmcu/pkg/cli/sh"
	"github.com/robotalks/hostmcu/pkg/console"

	_ "github.com/robotalks/hostmcu/pkg/cli/cmds/mcu"
)

//go-build: CGO_ENABLED=0

func init() {
	console.SetupFlags()
}

func main() {
	sh.Main()
}
