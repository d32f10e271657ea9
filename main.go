package main

import (
	"github.com/recondor/recondor/cmd"
	"github.com/recondor/recondor/internal/config"
)

func main() {
	config.LoadConfig()
	cmd.Execute()
}
