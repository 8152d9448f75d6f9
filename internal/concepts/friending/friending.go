// Package friending implements the friend request protocol between
// accounts. It reasons about opaque account ids only; errors carry the ids
// as metadata for the boundary to resolve.
package friending

import (
	"context"
	"sort"

	"tunefriends/internal/database"
	apperrors "tunefriends/internal/errors"
)

// FriendRequest is a pending request. A row exists only while pending.
type FriendRequest struct {
	database.Doc `bson:",inline"`
	From         string `bson:"from" json:"from"`
	To           string `bson:"to" json:"to"`
}

// Friendship is stored once per pair with User1 < User2.
type Friendship struct {
	database.Doc `bson:",inline"`
	User1        string `bson:"user1" json:"user1"`
	User2        string `bson:"user2" json:"user2"`
}

type Concept struct {
	friends  *database.Collection[Friendship]
	requests *database.Collection[FriendRequest]
}

// New creates the concept over two collections: name holds friendships and
// name+"_requests" holds pending requests.
func New(ctx context.Context, d database.DatabaseDriver, name string, now database.Clock) (*Concept, error) {
	friends, err := database.NewCollection[Friendship](ctx, d, name, now)
	if err != nil {
		return nil, err
	}
	requests, err := database.NewCollection[FriendRequest](ctx, d, name+"_requests", now)
	if err != nil {
		return nil, err
	}
	return &Concept{friends: friends, requests: requests}, nil
}

func pairMetadata(k1, v1, k2, v2 string) map[string]string {
	return map[string]string{k1: v1, k2: v2}
}

func alreadyFriends(a, b string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.KindNotAllowed, apperrors.CodeAlreadyFriends,
		"{user1} and {user2} are already friends!", pairMetadata("user1", a, "user2", b))
}

func requestAlreadyExists(from, to string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.KindNotAllowed, apperrors.CodeRequestAlreadyExists,
		"Friend request from {from} to {to} already exists!", pairMetadata("from", from, "to", to))
}

func requestNotFound(from, to string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.KindNotFound, apperrors.CodeRequestNotFound,
		"Friend request from {from} to {to} does not exist!", pairMetadata("from", from, "to", to))
}

func friendNotFound(a, b string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.KindNotFound, apperrors.CodeFriendNotFound,
		"Friendship between {user1} and {user2} does not exist!", pairMetadata("user1", a, "user2", b))
}

func checkPair(from, to string) error {
	if from == "" || to == "" {
		return apperrors.BadValues("Both users must be given!")
	}
	if from == to {
		return apperrors.New(apperrors.KindBadValues, apperrors.CodeSelfFriendRequest, "Cannot befriend yourself!")
	}
	return nil
}

func canonical(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

func edgeFilter(a, b string) database.Filter {
	u1, u2 := canonical(a, b)
	return database.Where(database.Eq("user1", u1), database.Eq("user2", u2))
}

func requestFilter(from, to string) database.Filter {
	return database.Where(database.Eq("from", from), database.Eq("to", to))
}

func (c *Concept) areFriends(ctx context.Context, a, b string) (bool, error) {
	edge, err := c.friends.ReadOne(ctx, edgeFilter(a, b))
	if err != nil {
		return false, apperrors.Unavailable(err)
	}
	return edge != nil, nil
}

func (c *Concept) pending(ctx context.Context, from, to string) (*FriendRequest, error) {
	req, err := c.requests.ReadOne(ctx, requestFilter(from, to))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return req, nil
}

// SendRequest creates pending(from→to). A pending request in the other
// direction does not block it.
func (c *Concept) SendRequest(ctx context.Context, from, to string) (FriendRequest, error) {
	if err := checkPair(from, to); err != nil {
		return FriendRequest{}, err
	}
	friends, err := c.areFriends(ctx, from, to)
	if err != nil {
		return FriendRequest{}, err
	}
	if friends {
		return FriendRequest{}, alreadyFriends(from, to)
	}
	existing, err := c.pending(ctx, from, to)
	if err != nil {
		return FriendRequest{}, err
	}
	if existing != nil {
		return FriendRequest{}, requestAlreadyExists(from, to)
	}
	id, err := c.requests.CreateOne(ctx, FriendRequest{From: from, To: to})
	if err != nil {
		return FriendRequest{}, apperrors.Unavailable(err)
	}
	created, err := c.requests.ReadOne(ctx, database.ByID(id))
	if err != nil {
		return FriendRequest{}, apperrors.Unavailable(err)
	}
	if created == nil {
		return FriendRequest{}, requestNotFound(from, to)
	}
	return *created, nil
}

// RemoveRequest withdraws an outgoing pending request.
func (c *Concept) RemoveRequest(ctx context.Context, from, to string) error {
	if err := checkPair(from, to); err != nil {
		return err
	}
	return c.deleteRequest(ctx, from, to)
}

// RejectRequest drops pending(from→to) without creating a friendship.
func (c *Concept) RejectRequest(ctx context.Context, from, to string) error {
	if err := checkPair(from, to); err != nil {
		return err
	}
	return c.deleteRequest(ctx, from, to)
}

func (c *Concept) deleteRequest(ctx context.Context, from, to string) error {
	n, err := c.requests.DeleteOne(ctx, requestFilter(from, to))
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return requestNotFound(from, to)
	}
	return nil
}

// AcceptRequest consumes pending(from→to), drops a reverse request if one
// exists, and records the friendship.
func (c *Concept) AcceptRequest(ctx context.Context, from, to string) error {
	if err := checkPair(from, to); err != nil {
		return err
	}
	if err := c.deleteRequest(ctx, from, to); err != nil {
		return err
	}
	if _, err := c.requests.DeleteOne(ctx, requestFilter(to, from)); err != nil {
		return apperrors.Unavailable(err)
	}
	friends, err := c.areFriends(ctx, from, to)
	if err != nil {
		return err
	}
	if friends {
		return nil
	}
	u1, u2 := canonical(from, to)
	if _, err := c.friends.CreateOne(ctx, Friendship{User1: u1, User2: u2}); err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

// RemoveFriend deletes the friendship between a and b in both directions.
func (c *Concept) RemoveFriend(ctx context.Context, a, b string) error {
	if err := checkPair(a, b); err != nil {
		return err
	}
	n, err := c.friends.DeleteMany(ctx, edgeFilter(a, b))
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return friendNotFound(a, b)
	}
	return nil
}

// GetFriends returns the ids of user's friends, oldest friendship first.
func (c *Concept) GetFriends(ctx context.Context, user string) ([]string, error) {
	opts := database.FindOptions{Sort: database.CreatedAtField}
	left, err := c.friends.ReadMany(ctx, database.Where(database.Eq("user1", user)), opts)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	right, err := c.friends.ReadMany(ctx, database.Where(database.Eq("user2", user)), opts)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	edges := append(left, right...)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].CreatedAt.Before(edges[j].CreatedAt) })

	seen := make(map[string]struct{}, len(edges))
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		other := e.User1
		if other == user {
			other = e.User2
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	return out, nil
}

// GetRequests returns every pending request user sent or received.
func (c *Concept) GetRequests(ctx context.Context, user string) ([]FriendRequest, error) {
	outgoing, err := c.GetOutgoingRequests(ctx, user)
	if err != nil {
		return nil, err
	}
	incoming, err := c.GetIncomingRequests(ctx, user)
	if err != nil {
		return nil, err
	}
	all := append(outgoing, incoming...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (c *Concept) GetIncomingRequests(ctx context.Context, user string) ([]FriendRequest, error) {
	return c.readRequests(ctx, database.Where(database.Eq("to", user)))
}

func (c *Concept) GetOutgoingRequests(ctx context.Context, user string) ([]FriendRequest, error) {
	return c.readRequests(ctx, database.Where(database.Eq("from", user)))
}

func (c *Concept) readRequests(ctx context.Context, filter database.Filter) ([]FriendRequest, error) {
	reqs, err := c.requests.ReadMany(ctx, filter, database.FindOptions{Sort: database.CreatedAtField})
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return reqs, nil
}

// DeleteByUser removes every request and friendship involving user.
func (c *Concept) DeleteByUser(ctx context.Context, user string) (int64, error) {
	var total int64
	filters := []struct {
		requests bool
		filter   database.Filter
	}{
		{true, database.Where(database.Eq("from", user))},
		{true, database.Where(database.Eq("to", user))},
		{false, database.Where(database.Eq("user1", user))},
		{false, database.Where(database.Eq("user2", user))},
	}
	for _, f := range filters {
		var (
			n   int64
			err error
		)
		if f.requests {
			n, err = c.requests.DeleteMany(ctx, f.filter)
		} else {
			n, err = c.friends.DeleteMany(ctx, f.filter)
		}
		if err != nil {
			return total, apperrors.Unavailable(err)
		}
		total += n
	}
	return total, nil
}
