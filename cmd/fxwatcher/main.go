package main

import (
	"fx-rate-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
