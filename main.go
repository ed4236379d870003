package main

import "github.com/sonlife/sonlife-giving/cmd"

func main() {
	cmd.Execute()
}
