package main

import "matchConnectAPI/cmd"

func main() {
	cmd.Execute()
}
