package engine

import (
	"errors"

	"github.com/uhyunpark/poolbook/pkg/engine/book"
	"github.com/uhyunpark/poolbook/pkg/engine/pool"
	"github.com/uhyunpark/poolbook/pkg/engine/price"
)

// Engine error identities. The strings are part of the external contract
// and must not change.
var (
	ErrDepositNotEnough = errors.New("DEPOSIT_NOT_ENOUGH")
	ErrNotOwner         = errors.New("NOT_OWNER")
	ErrInvalidToken     = errors.New("INVALID_TOKEN")
	ErrInvalidPath      = errors.New("INVALID_PATH")
	ErrExpired          = errors.New("EXPIRED")
	ErrLocked           = errors.New("LOCKED")

	// re-exported so callers only import this package
	ErrInvalidPrice          = price.ErrInvalidPrice
	ErrNoSuchOrder           = book.ErrNoSuchOrder
	ErrReachEnd              = book.ErrReachEnd
	ErrInsufficientLiquidity = pool.ErrInsufficientLiquidity
	ErrInsufficientStock     = pool.ErrInsufficientStock
	ErrInsufficientMoney     = pool.ErrInsufficientMoney
)
