package main

import "github.com/lumeo/lumeo/cmd"

func main() {
	cmd.Execute()
}
