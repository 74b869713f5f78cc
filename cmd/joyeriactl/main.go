package main

import "github.com/JonMunkholm/joyeria/internal/cli"

func main() {
	cli.Execute()
}
