package main

import "github.com/inovacc/gitcove/cmd"

func main() {
	cmd.Execute()
}
