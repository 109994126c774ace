package main

import "github.com/olablt/gio-pipmap/apps/pipmap/cmd"

func main() {
	cmd.Execute()
}
