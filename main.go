package main

import "github.com/emrgen/wikinote/cmd"

func main() {
	cmd.Execute()
}
