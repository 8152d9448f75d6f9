package app

import (
	"context"

	"tunefriends/internal/concepts/posting"
)

// GetSongs lists every shared song, or only those shared by username.
func (a *App) GetSongs(ctx context.Context, username string) ([]SongView, error) {
	var (
		songs []posting.Song
		err   error
	)
	if username == "" {
		songs, err = a.Posting.GetSongs(ctx)
	} else {
		var id string
		if id, err = a.userID(ctx, username); err != nil {
			return nil, err
		}
		songs, err = a.Posting.GetByAuthor(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return a.songViews(ctx, songs)
}

func (a *App) GetSong(ctx context.Context, id string) (SongView, error) {
	song, err := a.Posting.GetByID(ctx, id)
	if err != nil {
		return SongView{}, err
	}
	return one(ctx, song, a.songViews)
}

// GetRecentSong returns the song p shared or touched last, or nil.
func (a *App) GetRecentSong(ctx context.Context, p Principal) (*SongView, error) {
	song, err := a.Posting.GetMostRecent(ctx, p.UserID)
	if err != nil || song == nil {
		return nil, err
	}
	view, err := one(ctx, *song, a.songViews)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ShareSong records the track p is listening to. created is false when the
// track was already shared and has only been touched.
func (a *App) ShareSong(ctx context.Context, p Principal, track posting.Track) (view SongView, created bool, err error) {
	song, created, err := a.Posting.Create(ctx, p.UserID, track)
	if err != nil {
		return SongView{}, false, err
	}
	view, err = one(ctx, song, a.songViews)
	return view, created, err
}

func (a *App) TouchSong(ctx context.Context, p Principal, id string) error {
	if err := a.Posting.AssertAuthorIsUser(ctx, id, p.UserID); err != nil {
		return err
	}
	return a.Posting.Touch(ctx, id)
}

func (a *App) DeleteSong(ctx context.Context, p Principal, id string) error {
	if err := a.Posting.AssertAuthorIsUser(ctx, id, p.UserID); err != nil {
		return err
	}
	return a.Posting.Delete(ctx, id)
}
