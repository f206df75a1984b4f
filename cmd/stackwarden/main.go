package main

import "github.com/stackwarden/stackwarden/internal/cli"

func main() {
	cli.Execute()
}
