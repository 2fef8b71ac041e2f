package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/database"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type account struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Balance uint64 `json:"balance"`
}

type accounts struct {
	LatestBlock string    `json:"latest_block"`
	Height      int       `json:"height"`
	Uncommitted int       `json:"uncommitted"`
	Accounts    []account `json:"accounts"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the wallet's confirmed balance",
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}
	accountID := database.PublicKeyToAccountID(privateKey.PublicKey)

	resp, err := http.Get(fmt.Sprintf("%s/v1/accounts/list/%s", url, accountID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var accts accounts
	if err := json.NewDecoder(resp.Body).Decode(&accts); err != nil {
		return err
	}

	rows := pterm.TableData{{"Account", "Name", "Balance"}}
	for _, act := range accts.Accounts {
		rows = append(rows, []string{act.Account, act.Name, fmt.Sprintf("%d", act.Balance)})
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}

	pterm.Info.Printfln("height %d, tip %s, %d uncommitted", accts.Height, accts.LatestBlock, accts.Uncommitted)

	return nil
}
