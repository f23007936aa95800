package main

import "github.com/paidmsg/beancounter/internal/cli"

func main() {
	cli.Execute()
}
