package main

import "github.com/resvia/resvia/cmd"

func main() {
	cmd.Execute()
}
