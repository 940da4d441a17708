package main

import "ranker/internal/cli"

func main() {
	cli.Execute()
}
