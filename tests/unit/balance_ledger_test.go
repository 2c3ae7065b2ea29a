package unit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	balanceledger "tally/contexts/token-core/balance-ledger"
	domainerrors "tally/contexts/token-core/balance-ledger/domain/errors"
	hosttransport "tally/contexts/token-core/balance-ledger/transport/host"
	"tally/internal/app/bootstrap"
)

// Walks the deployment scenario end to end through the host surface:
// deploy as OWNER, mint to ALICE, transfer to BOB, then every rejection
// kind, asserting after each step that no rejected call moved a balance.
func TestLedgerLifecycleScenario(t *testing.T) {
	module, err := balanceledger.NewInMemoryModule("OWNER", nil)
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	ctx := context.Background()

	// Freshly deployed ledger: zero supply, owner recorded, no balances.
	supply, err := module.Handler.TotalSupplyHandler(ctx)
	if err != nil || supply.Data.TotalSupply != 0 {
		t.Fatalf("expected zero initial supply, got %d (%v)", supply.Data.TotalSupply, err)
	}
	owner, err := module.Handler.OwnerHandler(ctx)
	if err != nil || owner.Data.Owner != "OWNER" {
		t.Fatalf("expected owner OWNER, got %s (%v)", owner.Data.Owner, err)
	}
	ownerBalance, err := module.Handler.BalanceOfHandler(ctx, hosttransport.BalanceRequest{Account: "OWNER"})
	if err != nil || ownerBalance.Data.Balance != 0 {
		t.Fatalf("expected zero owner balance, got %d (%v)", ownerBalance.Data.Balance, err)
	}

	mint, err := module.Handler.MintHandler(ctx, hosttransport.MintRequest{
		Caller: "OWNER", To: "ALICE", Amount: 100,
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if mint.Data.TotalSupply != 100 {
		t.Fatalf("expected supply 100 after mint, got %d", mint.Data.TotalSupply)
	}

	transfer, err := module.Handler.TransferHandler(ctx, hosttransport.TransferRequest{
		Caller: "ALICE", To: "BOB", Amount: 40,
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if transfer.Data.From != "ALICE" || transfer.Data.To != "BOB" || transfer.Data.Amount != 40 {
		t.Fatalf("unexpected transfer receipt: %+v", transfer.Data)
	}

	aliceBalance, _ := module.Handler.MyBalanceHandler(ctx, hosttransport.MyBalanceRequest{Caller: "ALICE"})
	bobBalance, _ := module.Handler.BalanceOfHandler(ctx, hosttransport.BalanceRequest{Account: "BOB"})
	if aliceBalance.Data.Balance != 60 || bobBalance.Data.Balance != 40 {
		t.Fatalf("unexpected balances: alice=%d bob=%d", aliceBalance.Data.Balance, bobBalance.Data.Balance)
	}

	rejections := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "self transfer",
			call: func() error {
				_, err := module.Handler.TransferHandler(ctx, hosttransport.TransferRequest{
					Caller: "BOB", To: "BOB", Amount: 10,
				})
				return err
			},
			want: domainerrors.ErrTransferToSelf,
		},
		{
			name: "insufficient balance",
			call: func() error {
				_, err := module.Handler.TransferHandler(ctx, hosttransport.TransferRequest{
					Caller: "BOB", To: "ALICE", Amount: 1000,
				})
				return err
			},
			want: domainerrors.ErrInsufficientBalance,
		},
		{
			name: "non-owner mint",
			call: func() error {
				_, err := module.Handler.MintHandler(ctx, hosttransport.MintRequest{
					Caller: "ALICE", To: "ALICE", Amount: 50,
				})
				return err
			},
			want: domainerrors.ErrNotOwner,
		},
		{
			name: "zero mint",
			call: func() error {
				_, err := module.Handler.MintHandler(ctx, hosttransport.MintRequest{
					Caller: "OWNER", To: "ALICE", Amount: 0,
				})
				return err
			},
			want: domainerrors.ErrInvalidAmount,
		},
	}
	for _, rejection := range rejections {
		if err := rejection.call(); !errors.Is(err, rejection.want) {
			t.Fatalf("%s: expected %v, got %v", rejection.name, rejection.want, err)
		}

		supply, _ := module.Handler.TotalSupplyHandler(ctx)
		alice, _ := module.Handler.BalanceOfHandler(ctx, hosttransport.BalanceRequest{Account: "ALICE"})
		bob, _ := module.Handler.BalanceOfHandler(ctx, hosttransport.BalanceRequest{Account: "BOB"})
		if supply.Data.TotalSupply != 100 || alice.Data.Balance != 60 || bob.Data.Balance != 40 {
			t.Fatalf("%s: rejected call changed state: supply=%d alice=%d bob=%d",
				rejection.name, supply.Data.TotalSupply, alice.Data.Balance, bob.Data.Balance)
		}
	}

	// Owner is untouched by everything above.
	owner, _ = module.Handler.OwnerHandler(ctx)
	if owner.Data.Owner != "OWNER" {
		t.Fatalf("owner changed: %s", owner.Data.Owner)
	}
}

func TestSuccessfulMutationsRecordExactlyOneNotificationEach(t *testing.T) {
	module, err := balanceledger.NewInMemoryModule("OWNER", nil)
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	ctx := context.Background()

	if _, err := module.Handler.MintHandler(ctx, hosttransport.MintRequest{
		Caller: "OWNER", To: "ALICE", Amount: 100,
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := module.Handler.TransferHandler(ctx, hosttransport.TransferRequest{
		Caller: "ALICE", To: "BOB", Amount: 40,
	}); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if _, err := module.Handler.MintHandler(ctx, hosttransport.MintRequest{
		Caller: "OWNER", To: "ALICE", Amount: 0,
	}); err == nil {
		t.Fatal("expected zero mint rejection")
	}

	pending, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected two envelopes for two successful mutations, got %d", len(pending))
	}

	var minted, transferred map[string]any
	for _, message := range pending {
		var envelope map[string]any
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		data, _ := envelope["data"].(map[string]any)
		switch message.EventType {
		case "token.minted":
			minted = data
		case "token.transferred":
			transferred = data
		default:
			t.Fatalf("unexpected event type %s", message.EventType)
		}
	}
	if minted == nil || transferred == nil {
		t.Fatal("expected one minted and one transferred envelope")
	}
	if to, _ := minted["to"].(string); to != "ALICE" {
		t.Fatalf("unexpected minted.to: %v", minted["to"])
	}
	if amount, _ := minted["amount"].(float64); amount != 100 {
		t.Fatalf("unexpected minted.amount: %v", minted["amount"])
	}
	if from, _ := transferred["from"].(string); from != "ALICE" {
		t.Fatalf("unexpected transferred.from: %v", transferred["from"])
	}
	if to, _ := transferred["to"].(string); to != "BOB" {
		t.Fatalf("unexpected transferred.to: %v", transferred["to"])
	}
}

func TestBatchTransferThroughHostSurface(t *testing.T) {
	module, err := balanceledger.NewInMemoryModule("OWNER", nil)
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	ctx := context.Background()

	if _, err := module.Handler.MintHandler(ctx, hosttransport.MintRequest{
		Caller: "OWNER", To: "ALICE", Amount: 100,
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	batch, err := module.Handler.BatchTransferHandler(ctx, hosttransport.BatchTransferRequest{
		Caller: "ALICE",
		Legs: []hosttransport.BatchTransferLeg{
			{To: "BOB", Amount: 30},
			{To: "CAROL", Amount: 20},
		},
	})
	if err != nil {
		t.Fatalf("batch transfer failed: %v", err)
	}
	if batch.Data.Legs != 2 || batch.Data.TotalAmount != 50 {
		t.Fatalf("unexpected batch receipt: %+v", batch.Data)
	}

	holders, err := module.Handler.ListHoldersHandler(ctx, hosttransport.HoldersRequest{Limit: 10})
	if err != nil {
		t.Fatalf("list holders failed: %v", err)
	}
	if len(holders.Data) != 3 {
		t.Fatalf("expected three holders, got %d", len(holders.Data))
	}
	if holders.Data[0].Account != "ALICE" || holders.Data[0].Balance != 50 {
		t.Fatalf("expected ALICE leading with 50, got %+v", holders.Data[0])
	}
}

func TestRelayDeliversRecordedNotifications(t *testing.T) {
	app, err := bootstrap.BuildInMemory("OWNER", nil)
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	ctx := context.Background()

	if _, err := app.Module.Handler.MintHandler(ctx, hosttransport.MintRequest{
		Caller: "OWNER", To: "ALICE", Amount: 100,
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if err := app.RelayOnce(ctx); err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	pending, err := app.Module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("relay must drain the outbox, %d still pending", len(pending))
	}
}
