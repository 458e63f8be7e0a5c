package main

import "github.com/nypl/cancel-request-consumer/internal/cli"

func main() {
	cli.Execute()
}
