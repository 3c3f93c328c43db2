package main

import "github.com/maastricht-university/edmo-mood/cmd"

func main() {
	cmd.Execute()
}
