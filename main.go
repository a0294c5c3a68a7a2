package main

import "github.com/KaramelBytes/csvinsights/cmd"

func main() {
	cmd.Execute()
}
