package main

import "github.com/nbed-digital/continuum/cmd"

func main() {
	cmd.Execute()
}
