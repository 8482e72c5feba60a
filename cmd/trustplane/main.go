package main

import "github.com/airlabs/trustplane/internal/cli"

func main() {
	cli.Execute()
}
