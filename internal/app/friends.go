package app

import (
	"context"

	"tunefriends/internal/concepts/friending"
)

// GetFriends returns the usernames of p's friends.
func (a *App) GetFriends(ctx context.Context, p Principal) ([]string, error) {
	ids, err := a.Friending.GetFriends(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return a.names.Usernames(ctx, ids)
}

func (a *App) RemoveFriend(ctx context.Context, p Principal, friend string) error {
	id, err := a.userID(ctx, friend)
	if err != nil {
		return err
	}
	return a.Friending.RemoveFriend(ctx, p.UserID, id)
}

func (a *App) GetRequests(ctx context.Context, p Principal) ([]FriendRequestView, error) {
	return a.requests(ctx, p, a.Friending.GetRequests)
}

func (a *App) GetIncomingRequests(ctx context.Context, p Principal) ([]FriendRequestView, error) {
	return a.requests(ctx, p, a.Friending.GetIncomingRequests)
}

func (a *App) GetOutgoingRequests(ctx context.Context, p Principal) ([]FriendRequestView, error) {
	return a.requests(ctx, p, a.Friending.GetOutgoingRequests)
}

func (a *App) requests(ctx context.Context, p Principal, read func(context.Context, string) ([]friending.FriendRequest, error)) ([]FriendRequestView, error) {
	reqs, err := read(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return a.requestViews(ctx, reqs)
}

// SendFriendRequest asks the account named to to become p's friend.
func (a *App) SendFriendRequest(ctx context.Context, p Principal, to string) (FriendRequestView, error) {
	id, err := a.userID(ctx, to)
	if err != nil {
		return FriendRequestView{}, err
	}
	req, err := a.Friending.SendRequest(ctx, p.UserID, id)
	if err != nil {
		return FriendRequestView{}, err
	}
	return one(ctx, req, a.requestViews)
}

// RemoveFriendRequest withdraws p's pending request to to.
func (a *App) RemoveFriendRequest(ctx context.Context, p Principal, to string) error {
	id, err := a.userID(ctx, to)
	if err != nil {
		return err
	}
	return a.Friending.RemoveRequest(ctx, p.UserID, id)
}

// AcceptFriendRequest accepts the pending request the account named from
// sent to p.
func (a *App) AcceptFriendRequest(ctx context.Context, p Principal, from string) error {
	id, err := a.userID(ctx, from)
	if err != nil {
		return err
	}
	return a.Friending.AcceptRequest(ctx, id, p.UserID)
}

func (a *App) RejectFriendRequest(ctx context.Context, p Principal, from string) error {
	id, err := a.userID(ctx, from)
	if err != nil {
		return err
	}
	return a.Friending.RejectRequest(ctx, id, p.UserID)
}
