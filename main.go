package main

import "github.com/HaKr/token-server/cmd"

func main() {
	cmd.Execute()
}
