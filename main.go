package main

import "github.com/shelfkeeper/apiserver/cmd"

func main() {
	cmd.Execute()
}
