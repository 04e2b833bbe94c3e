package main

import "github.com/lukasz-falda/libruscli/internal/cli"

func main() {
	cli.Execute()
}
