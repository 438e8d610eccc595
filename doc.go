// Package tokenledger provides a small token balance ledger for community
// events, driven by Telegram chat commands.
//
// Participants are identified by their chat handle ("@name") and hold a
// non-negative integer balance. Anyone can check their balance and transfer
// tokens to another participant. A static list of organizers can mint
// tokens into any account and burn tokens out of it.
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/tokenledger"
//	    "github.com/xraph/tokenledger/store/postgres"
//	)
//
//	s, err := postgres.Open(dsn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := tokenledger.New(s,
//	    tokenledger.WithOrganizers("@roman_odobesku"),
//	)
//
//	// Start migrates the schema and initializes plugins.
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Accounts are created with a zero balance the first time they are
// referenced by a command. Reading a balance never creates one:
//
//	acct, err := l.Resolve(ctx, "@alice")
//	balance, err := l.Balance(ctx, "@bob") // 0, no row created
//
// Organizers mint and burn:
//
//	_, err = l.Mint(ctx, "@roman_odobesku", "@alice", 100)
//	_, err = l.Burn(ctx, "@roman_odobesku", "@alice", 10)
//
// Participants transfer:
//
//	op, err := l.Transfer(ctx, "@alice", "@bob", 30)
//
// A debit larger than the balance fails with an *InsufficientBalanceError
// and leaves every balance unchanged.
//
// # Consistency
//
// Every store applies a balance change as a single atomic increment, so
// concurrent commands never lose updates. On stores that implement
// store.Transactional (postgres, sqlite, memory) transfers and burns also
// run their balance check and both writes in one transaction. Disable this
// with WithAtomicTransfers(false) to get two independent writes.
//
// # Plugins
//
// Plugins observe lifecycle and balance events through the hooks in the
// plugin package. The audit_hook and observability packages ship ready-made
// plugins for audit trails and metrics.
package tokenledger
