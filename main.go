package main

import "dealwatcher/internal/cli"

func main() {
	cli.Execute()
}
