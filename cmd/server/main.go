package main

import "healthsync/cmd/server/cmd"

func main() {
	cmd.Execute()
}
