// Package posting records the songs users share. A track is stored once;
// sharing it again refreshes its update time.
package posting

import (
	"context"
	"errors"
	"strings"

	"tunefriends/internal/database"
	apperrors "tunefriends/internal/errors"
)

type Song struct {
	database.Doc `bson:",inline"`
	TrackID      string `bson:"trackId" json:"trackId"`
	Author       string `bson:"author" json:"author"`
	Artist       string `bson:"artist" json:"artist"`
	Name         string `bson:"name" json:"name"`
	Album        string `bson:"album" json:"album"`
	AlbumCover   string `bson:"albumCover" json:"albumCover"`
	URL          string `bson:"url" json:"url"`
	Lyrics       string `bson:"lyrics" json:"lyrics"`
}

// Track is the metadata a client reports for the song it is playing.
type Track struct {
	TrackID    string
	Artist     string
	Name       string
	Album      string
	AlbumCover string
	URL        string
	Lyrics     string
}

type Concept struct {
	songs *database.Collection[Song]
}

func New(ctx context.Context, d database.DatabaseDriver, collection string, now database.Clock) (*Concept, error) {
	songs, err := database.NewCollection[Song](ctx, d, collection, now)
	if err != nil {
		return nil, err
	}
	if err := songs.CreateUniqueIndex(ctx, "trackId"); err != nil {
		return nil, err
	}
	return &Concept{songs: songs}, nil
}

func songNotFound(id string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.KindNotFound, apperrors.CodeSongNotFound,
		"Song {id} does not exist!", map[string]string{"id": id})
}

// Create stores track for author. When the track is already stored it is
// touched instead and created is false.
func (c *Concept) Create(ctx context.Context, author string, track Track) (song Song, created bool, err error) {
	track.TrackID = strings.TrimSpace(track.TrackID)
	if author == "" || track.TrackID == "" {
		return Song{}, false, apperrors.BadValues("Author and track id must be non-empty!")
	}
	existing, err := c.GetByTrackID(ctx, track.TrackID)
	if err != nil {
		return Song{}, false, err
	}
	if existing != nil {
		if err := c.Touch(ctx, existing.ID); err != nil {
			return Song{}, false, err
		}
		song, err := c.GetByID(ctx, existing.ID)
		return song, false, err
	}
	id, err := c.songs.CreateOne(ctx, Song{
		TrackID:    track.TrackID,
		Author:     author,
		Artist:     track.Artist,
		Name:       track.Name,
		Album:      track.Album,
		AlbumCover: track.AlbumCover,
		URL:        track.URL,
		Lyrics:     track.Lyrics,
	})
	if errors.Is(err, database.ErrAlreadyExists) {
		// Lost a race with another insert of the same track.
		return c.Create(ctx, author, track)
	}
	if err != nil {
		return Song{}, false, apperrors.Unavailable(err)
	}
	song, err = c.GetByID(ctx, id)
	return song, err == nil, err
}

// GetSongs returns every song, newest first.
func (c *Concept) GetSongs(ctx context.Context) ([]Song, error) {
	return c.read(ctx, nil, database.FindOptions{Sort: database.CreatedAtField, Desc: true})
}

func (c *Concept) GetByAuthor(ctx context.Context, author string) ([]Song, error) {
	return c.read(ctx, database.Where(database.Eq("author", author)), database.FindOptions{Sort: database.CreatedAtField, Desc: true})
}

func (c *Concept) read(ctx context.Context, filter database.Filter, opts database.FindOptions) ([]Song, error) {
	songs, err := c.songs.ReadMany(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return songs, nil
}

func (c *Concept) GetByID(ctx context.Context, id string) (Song, error) {
	song, err := c.songs.ReadOne(ctx, database.ByID(id))
	if err != nil {
		return Song{}, apperrors.Unavailable(err)
	}
	if song == nil {
		return Song{}, songNotFound(id)
	}
	return *song, nil
}

// GetByTrackID returns nil when the track has not been shared.
func (c *Concept) GetByTrackID(ctx context.Context, trackID string) (*Song, error) {
	song, err := c.songs.ReadOne(ctx, database.Where(database.Eq("trackId", trackID)))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return song, nil
}

// GetMostRecent returns the song author touched last, or nil.
func (c *Concept) GetMostRecent(ctx context.Context, author string) (*Song, error) {
	songs, err := c.read(ctx, database.Where(database.Eq("author", author)),
		database.FindOptions{Sort: database.UpdatedAtField, Desc: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, nil
	}
	return &songs[0], nil
}

// Touch refreshes the song's update time.
func (c *Concept) Touch(ctx context.Context, id string) error {
	n, err := c.songs.PartialUpdateOne(ctx, database.ByID(id), nil)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return songNotFound(id)
	}
	return nil
}

func (c *Concept) Delete(ctx context.Context, id string) error {
	n, err := c.songs.DeleteOne(ctx, database.ByID(id))
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return songNotFound(id)
	}
	return nil
}

func (c *Concept) DeleteByAuthor(ctx context.Context, author string) (int64, error) {
	n, err := c.songs.DeleteMany(ctx, database.Where(database.Eq("author", author)))
	if err != nil {
		return 0, apperrors.Unavailable(err)
	}
	return n, nil
}

func (c *Concept) AssertSongExists(ctx context.Context, id string) error {
	_, err := c.GetByID(ctx, id)
	return err
}

func (c *Concept) AssertAuthorIsUser(ctx context.Context, id, user string) error {
	song, err := c.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if song.Author != user {
		return apperrors.WithMetadata(apperrors.KindNotAllowed, apperrors.CodeSongAuthorMismatch,
			"{author} is not the author of song {id}!", map[string]string{"author": user, "id": id})
	}
	return nil
}
