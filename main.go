package main

import "github.com/mselser95/hyperdrive-amm/cmd"

func main() {
	cmd.Execute()
}
