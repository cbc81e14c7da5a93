package main

import "github.com/Eventual-Inc/modelfn/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
