package btcsync

/*
Observers got notified once the ledger accepts a relayed action
*/

// Observer on accepted headers
type HeaderObserver interface {
	GetNotifiedHeader()
}

// Observer on accepted transactions
type RelayedTxObserver interface {
	GetNotifiedRelayedTx()
}
