package main

import "github.com/mingjobo/piximagegenerator/cmd"

func main() {
	cmd.Run()
}
