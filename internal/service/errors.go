package service

import "errors"

var (
	ErrValidation          = errors.New("validation")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	ErrBidTooLow         = errors.New("bid must be higher than the current highest bid")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrAuctionEnded      = errors.New("auction has ended")
)

// IsBidRejection reports whether err is a business rejection of a bid rather
// than a malformed request or an internal failure.
func IsBidRejection(err error) bool {
	return errors.Is(err, ErrBidTooLow) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAuctionEnded)
}
