package ledger

import "errors"

var (
	// ErrInsufficientBalance rejects a buy whose cost exceeds available cash.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientShares rejects a sell larger than the open long position.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInsufficientShortPosition rejects a cover larger than the open short
	// position.
	ErrInsufficientShortPosition = errors.New("insufficient short position")

	// ErrOppositeSideOpen rejects opening a long while a short is open on the
	// same symbol, and vice versa. The existing side must be flattened first.
	ErrOppositeSideOpen = errors.New("opposite side open")
)
