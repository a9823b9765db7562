package main

import "github.com/Mikhaerys/SafeKids-Face-Recognition/cmd"

func main() {
	cmd.Execute()
}
