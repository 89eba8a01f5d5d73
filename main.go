package main

import "github.com/tanq16/fget/cmd"

func main() {
	cmd.Execute()
}
