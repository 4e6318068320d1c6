package main

import "github.com/kiesman99/tilemerge/cmd"

func main() {
	cmd.Execute()
}
