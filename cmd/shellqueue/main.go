package main

import "github.com/wheresmyhair/Shell-Queue-Manager/internal/cli"

func main() {
	cli.Execute()
}
