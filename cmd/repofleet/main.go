package main

import "repofleet/internal/cmd"

func main() {
	cmd.Execute()
}
