package main

import "github.com/horizonsante/hsc/cmd/hscapi/cmd"

func main() {
	cmd.Execute()
}
