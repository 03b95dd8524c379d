package holdem

import "errors"

var (
	ErrHandInProgress   = errors.New("hand already in progress")
	ErrNoActiveHand     = errors.New("no active hand")
	ErrHandNotBetting   = errors.New("hand is not in a betting round")
	ErrNotAtShowdown    = errors.New("hand is not at showdown")
	ErrNotEnoughPlayers = errors.New("not enough active players")

	ErrInvalidSeat     = errors.New("invalid seat number")
	ErrSeatOccupied    = errors.New("seat already occupied")
	ErrSeatEmpty       = errors.New("seat is empty")
	ErrBuyInOutOfRange = errors.New("buy-in outside table limits")

	ErrOutOfTurn       = errors.New("action out of turn")
	ErrCheckFacingBet  = errors.New("cannot check facing a bet")
	ErrBetFacingBet    = errors.New("cannot bet facing a bet")
	ErrNothingToCall   = errors.New("nothing to call")
	ErrNothingToRaise  = errors.New("no bet to raise")
	ErrBetTooSmall     = errors.New("bet below the big blind")
	ErrRaiseTooSmall   = errors.New("raise below the minimum raise")
	ErrActionNotReopen = errors.New("betting was not reopened")
	ErrNoChips         = errors.New("no chips behind")

	ErrRebuyMidHand   = errors.New("rebuy only allowed between hands")
	ErrRebuyOverLimit = errors.New("rebuy would exceed the maximum buy-in")

	ErrTooFewCards = errors.New("need at least five cards to evaluate")
)
