package main

import "github.com/bcnelson/facepoke-broker/cmd/keyctl/cmd"

func main() {
	cmd.Execute()
}
