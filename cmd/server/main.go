package main

import "cspulse/cmd/cli"

func main() {
	cli.Execute()
}
