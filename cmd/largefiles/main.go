package main

import "github.com/aweris/largefiles/cmd/largefiles/cmd"

func main() {
	cmd.Execute()
}
