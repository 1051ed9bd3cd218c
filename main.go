package main

import "github.com/gokturkhatay/smartinbox/cmd"

// version is stamped by goreleaser via ldflags.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
