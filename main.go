package main

import "github.com/vibast-solutions/ms-go-bills-due/cmd"

func main() {
	cmd.Execute()
}
