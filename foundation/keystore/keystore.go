// Package keystore reads a folder of .ecdsa private key files and provides
// key loading and account name lookup for the node and the wallet.
package keystore

import (
	"crypto/ecdsa"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgeledger/forge/foundation/blockchain/database"
)

// KeyStore maintains a map of accounts for key and name lookup.
type KeyStore struct {
	folder   string
	accounts map[database.AccountID]string
}

// New constructs a KeyStore with the accounts from the specified folder. The
// file name of each .ecdsa file is the account's name.
func New(folder string) (*KeyStore, error) {
	ks := KeyStore{
		folder:   folder,
		accounts: make(map[database.AccountID]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return err
		}

		accountID := database.PublicKeyToAccountID(privateKey.PublicKey)
		ks.accounts[accountID] = strings.TrimSuffix(path.Base(fileName), ".ecdsa")

		return nil
	}

	if err := filepath.Walk(folder, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ks, nil
}

// LoadPrivateKey loads the private key file for the specified name.
func (ks *KeyStore) LoadPrivateKey(name string) (*ecdsa.PrivateKey, error) {
	return crypto.LoadECDSA(path.Join(ks.folder, name+".ecdsa"))
}

// Lookup returns the name for the specified account.
func (ks *KeyStore) Lookup(accountID database.AccountID) string {
	name, exists := ks.accounts[accountID]
	if !exists {
		return string(accountID)
	}
	return name
}

// Copy returns a copy of the map of names and accounts.
func (ks *KeyStore) Copy() map[database.AccountID]string {
	cpy := make(map[database.AccountID]string, len(ks.accounts))
	for accountID, name := range ks.accounts {
		cpy[accountID] = name
	}
	return cpy
}
