package main

import "github.com/Norgate-AV/spvgen/cmd"

func main() {
	cmd.Execute()
}
