package main

import "github.com/khanhnv2901/webharden/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
