package main

import "github.com/andrewpaige1/bookswap-api/cmd"

func main() {
	cmd.Execute()
}
