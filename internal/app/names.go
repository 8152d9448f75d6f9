package app

import (
	"context"
	"log/slog"

	"tunefriends/internal/concepts/authenticating"
	"tunefriends/internal/namecache"
)

// accountNames resolves account ids to usernames through the cache, falling
// back to Authenticating for misses. Placeholders for deleted accounts are
// never cached.
type accountNames struct {
	authing *authenticating.Concept
	cache   namecache.Cache
	log     *slog.Logger
}

func (n *accountNames) Usernames(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	cached, err := n.cache.GetMany(ctx, ids)
	if err != nil {
		n.log.WarnContext(ctx, "name cache read failed", "err", err)
		cached = map[string]string{}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		names, err := n.authing.IDsToUsernames(ctx, missing)
		if err != nil {
			return nil, err
		}
		found := make(map[string]string, len(missing))
		for i, id := range missing {
			cached[id] = names[i]
			if names[i] != authenticating.DeletedUsername {
				found[id] = names[i]
			}
		}
		if err := n.cache.SetMany(ctx, found); err != nil {
			n.log.WarnContext(ctx, "name cache write failed", "err", err)
		}
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = cached[id]
	}
	return out, nil
}

func (n *accountNames) Username(ctx context.Context, id string) (string, error) {
	names, err := n.Usernames(ctx, []string{id})
	if err != nil {
		return "", err
	}
	return names[0], nil
}

func (n *accountNames) Forget(ctx context.Context, id string) {
	if err := n.cache.Invalidate(ctx, id); err != nil {
		n.log.WarnContext(ctx, "name cache invalidate failed", "id", id, "err", err)
	}
}
