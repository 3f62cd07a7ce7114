package main

import "github.com/ssargent/bbsync/cmd/bbsync/cmd"

func main() {
	cmd.Execute()
}
