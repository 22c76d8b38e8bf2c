package main

import "github.com/chris/mergen/cmd"

func main() {
	cmd.Execute()
}
