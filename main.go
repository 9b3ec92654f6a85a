package main

import "github.com/lcjefferson/cliniflow2026-sub001/cmd"

func main() {
	cmd.Execute()
}
