package main

import "github.com/minkv/minkv/cmd"

func main() {
	cmd.Execute()
}
