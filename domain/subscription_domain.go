package domain

import (
	"errors"
)

var (
	MessageSuccessSubscribe        = "subscribed successfully"
	MessageSuccessUnsubscribe      = "unsubscribed successfully"
	MessageSuccessGetSubscriptions = "success get subscriptions"

	MessageFailedSubscribe        = "failed to subscribe"
	MessageFailedUnsubscribe      = "failed to unsubscribe"
	MessageFailedGetSubscriptions = "failed to get subscriptions"

	ErrSelfSubscription     = errors.New("user cannot subscribe to themselves")
	ErrAlreadySubscribed    = errors.New("subscription already exists")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

type SubscriptionResponse struct {
	ID           string                  `json:"id"`
	Email        string                  `json:"email"`
	Username     string                  `json:"username"`
	FirstName    string                  `json:"first_name"`
	LastName     string                  `json:"last_name"`
	Avatar       string                  `json:"avatar,omitempty"`
	IsSubscribed bool                    `json:"is_subscribed"`
	Recipes      []RecipeSummaryResponse `json:"recipes"`
	RecipesCount int64                   `json:"recipes_count"`
}
