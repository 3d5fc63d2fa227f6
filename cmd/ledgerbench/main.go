// Command ledgerbench is a smoke-test binary for the ledger core. It builds
// a root account database, stacks a chain of mask overlays on top of it,
// applies one coinbase, one payment and one zkApp command to the top layer,
// prints the Merkle root of each mask layer, commits the layers down into the
// root database and prints its root.
//
// Usage:
//
//	ledgerbench [flags]
//
// Flags:
//
//	-depth       Tree depth of the root ledger (default: 8)
//	-masks       Number of mask layers to stack before committing (default: 2)
//	-loglevel    Log verbosity: debug, info, warn, error (default: "info")
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mina-ledger/ledger-core/currency"
	"github.com/mina-ledger/ledger-core/internal/log"
	"github.com/mina-ledger/ledger-core/ledger/account"
	"github.com/mina-ledger/ledger-core/ledger/capability"
	"github.com/mina-ledger/ledger-core/ledger/database"
	"github.com/mina-ledger/ledger-core/ledger/mask"
	"github.com/mina-ledger/ledger-core/txapply"
	"github.com/mina-ledger/ledger-core/zkapp"
)

func main() {
	os.Exit(run())
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// run is the actual entry point, returning an exit code so the binary can be
// exercised from a test without calling os.Exit directly.
func run() int {
	depth := flag.Int("depth", 8, "tree depth of the root ledger")
	maskCount := flag.Int("masks", 2, "number of mask layers to stack before committing")
	logLevel := flag.String("loglevel", "info", "log verbosity (debug, info, warn, error)")
	flag.Parse()

	log.SetDefault(log.New(parseLevel(*logLevel)))
	logger := log.Module("ledgerbench")

	logger.Info("starting ledgerbench", "depth", *depth, "masks", *maskCount)

	db, err := database.New(*depth)
	if err != nil {
		logger.Error("failed to create root database", "error", err)
		return 1
	}

	producer := account.NewAccountID(pubKeyFromByte(1))
	payer := account.NewAccountID(pubKeyFromByte(2))
	receiver := account.NewAccountID(pubKeyFromByte(3))

	if _, _, err := db.GetOrCreateAccount(payer, account.New(payer, 1_000_000)); err != nil {
		logger.Error("failed to seed fee payer", "error", err)
		return 1
	}

	var top capability.Ledger = db
	layers := make([]*mask.Mask, 0, *maskCount)
	for i := 0; i < *maskCount; i++ {
		m, err := mask.New(*depth)
		if err != nil {
			logger.Error("failed to create mask layer", "layer", i, "error", err)
			return 1
		}
		m.SetParent(top)
		layers = append(layers, m)
		top = m
	}

	cc := txapply.ConstraintConstants{AccountCreationFee: 1}
	view := txapply.ProtocolStateView{GlobalSlotSinceGenesis: 0}

	cbApplied, err := txapply.ApplyTransaction(cc, view, top, txapply.Transaction{
		Coinbase: &txapply.Coinbase{Receiver: producer, Amount: 720},
	})
	if err != nil {
		logger.Error("coinbase application failed", "error", err)
		return 1
	}
	logger.Info("applied coinbase", "applied", cbApplied.Coinbase.Status.Applied)

	payApplied, err := txapply.ApplyTransaction(cc, view, top, txapply.Transaction{
		SignedCommand: &txapply.SignedCommand{
			Signer: pubKeyFromByte(2),
			Payload: txapply.SignedCommandPayload{
				Common: txapply.SignedCommandPayloadCommon{
					Fee:        5,
					FeeToken:   account.DefaultTokenID,
					FeePayerPK: pubKeyFromByte(2),
					Nonce:      0,
					ValidUntil: ^uint32(0),
				},
				Body: txapply.SignedCommandPayloadBody{
					Payment: &txapply.PaymentPayload{
						SourcePK:   pubKeyFromByte(2),
						ReceiverPK: pubKeyFromByte(3),
						Amount:     1000,
					},
				},
			},
		},
	})
	if err != nil {
		logger.Error("payment application failed", "error", err)
		return 1
	}
	logger.Info("applied payment", "applied", payApplied.SignedCommand.Status.Applied)

	global := &zkapp.GlobalState{Ledger: top, ProtocolStateView: zkapp.ProtocolStateView{GlobalSlotSinceGenesis: 0}}
	zkApplied, err := zkapp.ApplyZkAppCommand(cc, global, zkapp.Command{
		FeePayer: zkapp.FeePayer{PublicKey: pubKeyFromByte(2), Fee: 5, Nonce: 1, ValidUntil: ^uint32(0)},
		Calls: []zkapp.AccountUpdate{
			{
				PublicKey:     pubKeyFromByte(3),
				Caller:        account.DefaultTokenID,
				BalanceChange: currency.PositiveOf(currency.Amount(50)),
			},
		},
	})
	if err != nil {
		logger.Error("zkApp command application failed", "error", err)
		return 1
	}
	logger.Info("applied zkApp command", "applied", zkApplied.Status.Applied)

	for i, m := range layers {
		root := m.MerkleRoot()
		fmt.Printf("mask[%d] root: %s\n", i, root.Hex())
	}
	if len(layers) > 0 {
		for i := len(layers) - 1; i >= 0; i-- {
			layers[i].Commit()
		}
	}
	fmt.Printf("root database root: %s\n", db.MerkleRoot().Hex())

	_ = receiver
	return 0
}

func pubKeyFromByte(b byte) account.PublicKey {
	var pk account.PublicKey
	pk[0] = b
	return pk
}
