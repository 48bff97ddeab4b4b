package main

import (
	"os"

	"github.com/arloliu/go-homeworks/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
