package main

import "phpvm/internal/cli"

func main() {
	cli.Execute()
}
