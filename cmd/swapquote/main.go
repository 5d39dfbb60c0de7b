package main

import "github.com/vietddude/swapquote/internal/cli"

func main() {
	cli.Execute()
}
