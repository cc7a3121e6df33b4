package main

import "github.com/streamtalk/streamtalk-go/cmd"

func main() {
	cmd.Execute()
}
