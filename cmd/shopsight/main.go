package main

import "github.com/tugdual/shopsight/cmd/shopsight/commands"

func main() {
	commands.Execute()
}
