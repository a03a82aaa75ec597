package main

import "github.com/ag-tej/shiksha-setu/internal/cli"

func main() {
	cli.Execute()
}
