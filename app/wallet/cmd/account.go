package cmd

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the account for the wallet's key",
	RunE:  accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	pterm.Println(database.PublicKeyToAccountID(privateKey.PublicKey))

	return nil
}
