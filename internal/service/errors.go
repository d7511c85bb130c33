package service

import "github.com/tazhate/dombot/internal/apperr"

// Sentinel errors returned by the services. They carry the text shown in chat.
var (
	ErrInvalidAmount       = apperr.InvalidArgument("The amount must be a positive whole number.")
	ErrSelfTarget          = apperr.InvalidArgument("You can't do that to yourself.")
	ErrInsufficientFunds   = apperr.PreconditionFailed("You don't have enough coins for that.")
	ErrDailyAlreadyClaimed = apperr.PreconditionFailed("You already claimed your daily bonus in the last 24h.")
	ErrSecretNotConfigured = apperr.New(apperr.KindConfiguration, "Owner authentication is not configured on this bot.")
	ErrWrongSecret         = apperr.PermissionDenied("Wrong secret.")
)
