package main

import "github.com/AdguardTeam/AdGuardCB/internal/cmd"

func main() {
	cmd.Main()
}
