package main

import "healthsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
