package main

import "lexsync/cmd"

func main() {
	cmd.Execute()
}
