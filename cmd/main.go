package main

import "github.com/theblitlabs/sandbox-provisioner/cmd/cli"

func main() {
	cli.Execute()
}
