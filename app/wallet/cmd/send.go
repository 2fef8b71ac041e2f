package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/forgeledger/forge/foundation/blockchain/signature"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	recipient string
	amount    uint64
	nonce     uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a transaction",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&recipient, "to", "t", "", "Recipient account.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Unique nonce for the transaction.")
}

func sendRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	recipientID, err := database.ToAccountID(recipient)
	if err != nil {
		return err
	}

	tx, err := database.NewTx(
		database.PublicKeyToAccountID(privateKey.PublicKey),
		recipientID,
		amount,
		nonce,
		signature.PublicKeyString(&privateKey.PublicKey),
	)
	if err != nil {
		return err
	}

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		return err
	}

	data, err := json.Marshal(signedTx)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return errors.New(string(msg))
	}

	pterm.Success.Printfln("submitted %s", signedTx.HashHex())

	return nil
}
