package main

import "github.com/khanhnv2901/tlsprofiler/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
