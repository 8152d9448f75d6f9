package app

import (
	"context"
	"time"

	"tunefriends/internal/concepts/commenting"
	"tunefriends/internal/concepts/friending"
	"tunefriends/internal/concepts/locking"
	"tunefriends/internal/concepts/posting"
)

// Views replace account ids with usernames. They are what the API encodes.

type FriendRequestView struct {
	ID        string    `json:"_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"dateCreated"`
}

type LockView struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	Locker    string    `json:"locker"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	CreatedAt time.Time `json:"dateCreated"`
}

type CommentView struct {
	ID        string    `json:"_id"`
	Post      string    `json:"post"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Lyrics    string    `json:"lyrics"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"dateCreated"`
	UpdatedAt time.Time `json:"dateUpdated"`
	// Expired is set only on classified snapshot listings.
	Expired *bool `json:"expired,omitempty"`
}

type SongView struct {
	ID         string    `json:"_id"`
	TrackID    string    `json:"trackId"`
	Author     string    `json:"author"`
	Artist     string    `json:"artist"`
	Name       string    `json:"name"`
	Album      string    `json:"album"`
	AlbumCover string    `json:"albumCover"`
	URL        string    `json:"url"`
	Lyrics     string    `json:"lyrics"`
	CreatedAt  time.Time `json:"dateCreated"`
	UpdatedAt  time.Time `json:"dateUpdated"`
}

// usernamesFor resolves ids in a single batch and returns a lookup.
func (a *App) usernamesFor(ctx context.Context, ids []string) (map[string]string, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	names, err := a.names.Usernames(ctx, uniq)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(uniq))
	for i, id := range uniq {
		out[id] = names[i]
	}
	return out, nil
}

func (a *App) requestViews(ctx context.Context, reqs []friending.FriendRequest) ([]FriendRequestView, error) {
	ids := make([]string, 0, 2*len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.From, r.To)
	}
	names, err := a.usernamesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]FriendRequestView, len(reqs))
	for i, r := range reqs {
		out[i] = FriendRequestView{ID: r.ID, From: names[r.From], To: names[r.To], CreatedAt: r.CreatedAt}
	}
	return out, nil
}

func (a *App) lockViews(ctx context.Context, locks []locking.Lock) ([]LockView, error) {
	ids := make([]string, len(locks))
	for i, l := range locks {
		ids[i] = l.Locker
	}
	names, err := a.usernamesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]LockView, len(locks))
	for i, l := range locks {
		out[i] = LockView{
			ID:        l.ID,
			Content:   l.Content,
			Locker:    names[l.Locker],
			From:      l.From,
			To:        l.To,
			CreatedAt: l.CreatedAt,
		}
	}
	return out, nil
}

func (a *App) commentViews(ctx context.Context, comments []commenting.Comment) ([]CommentView, error) {
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.Author
	}
	names, err := a.usernamesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CommentView, len(comments))
	for i, c := range comments {
		out[i] = CommentView{
			ID:        c.ID,
			Post:      c.Post,
			Author:    names[c.Author],
			Text:      c.Text,
			Lyrics:    c.Lyrics,
			Image:     c.Image,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
	}
	return out, nil
}

func (a *App) classifiedViews(ctx context.Context, classified []commenting.Classified) ([]CommentView, error) {
	comments := make([]commenting.Comment, len(classified))
	for i, c := range classified {
		comments[i] = c.Comment
	}
	views, err := a.commentViews(ctx, comments)
	if err != nil {
		return nil, err
	}
	for i := range views {
		expired := classified[i].Expired
		views[i].Expired = &expired
	}
	return views, nil
}

func (a *App) songViews(ctx context.Context, songs []posting.Song) ([]SongView, error) {
	ids := make([]string, len(songs))
	for i, s := range songs {
		ids[i] = s.Author
	}
	names, err := a.usernamesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]SongView, len(songs))
	for i, s := range songs {
		out[i] = SongView{
			ID:         s.ID,
			TrackID:    s.TrackID,
			Author:     names[s.Author],
			Artist:     s.Artist,
			Name:       s.Name,
			Album:      s.Album,
			AlbumCover: s.AlbumCover,
			URL:        s.URL,
			Lyrics:     s.Lyrics,
			CreatedAt:  s.CreatedAt,
			UpdatedAt:  s.UpdatedAt,
		}
	}
	return out, nil
}

// one converts a single document with the batch converter.
func one[D, V any](ctx context.Context, doc D, convert func(context.Context, []D) ([]V, error)) (V, error) {
	views, err := convert(ctx, []D{doc})
	if err != nil {
		var zero V
		return zero, err
	}
	return views[0], nil
}
