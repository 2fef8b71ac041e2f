package cmd

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key pair",
	RunE:  generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	path := getPrivateKeyPath()
	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return err
	}

	pterm.Success.Printfln("wrote %s", path)
	pterm.Info.Printfln("account %s", database.PublicKeyToAccountID(privateKey.PublicKey))

	return nil
}
