package main

import "airsync/cmd/airsync/cmd"

func main() {
	cmd.Execute()
}
