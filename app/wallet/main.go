package main

import "github.com/forgeledger/forge/app/wallet/cmd"

func main() {
	cmd.Execute()
}
