package main

import "github.com/vibbin/vibbin/cmd"

func main() {
	cmd.Execute()
}
