package main

import "github.com/aureeture/mentor_sessions/internal/cli"

func main() {
	cli.Execute()
}
