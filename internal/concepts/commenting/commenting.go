// Package commenting stores comments on posts. The same concept backs
// permanent covers and ephemeral snapshots; expiry is derived from age at
// read time and never stored.
package commenting

import (
	"context"
	"time"

	"tunefriends/internal/database"
	apperrors "tunefriends/internal/errors"
)

// DefaultExpiry is the age after which a comment counts as expired.
const DefaultExpiry = 24 * time.Hour

type Comment struct {
	database.Doc `bson:",inline"`
	Post         string `bson:"post" json:"post"`
	Author       string `bson:"author" json:"author"`
	Text         string `bson:"text" json:"text"`
	Lyrics       string `bson:"lyrics" json:"lyrics"`
	Image        string `bson:"image" json:"image"`
}

// Classified is a comment annotated with its expiry at read time.
type Classified struct {
	Comment
	Expired bool
}

// Patch holds optional new values; nil fields are left unchanged.
type Patch struct {
	Text   *string
	Lyrics *string
	Image  *string
}

type Concept struct {
	comments *database.Collection[Comment]
	expiry   time.Duration
}

func New(ctx context.Context, d database.DatabaseDriver, collection string, now database.Clock, expiry time.Duration) (*Concept, error) {
	comments, err := database.NewCollection[Comment](ctx, d, collection, now)
	if err != nil {
		return nil, err
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Concept{comments: comments, expiry: expiry}, nil
}

func (c *Concept) Now() time.Time {
	return c.comments.Now()
}

func (c *Concept) Create(ctx context.Context, post, author, text, lyrics, image string) (Comment, error) {
	if post == "" || author == "" {
		return Comment{}, apperrors.BadValues("Post and author must be non-empty!")
	}
	id, err := c.comments.CreateOne(ctx, Comment{Post: post, Author: author, Text: text, Lyrics: lyrics, Image: image})
	if err != nil {
		return Comment{}, apperrors.Unavailable(err)
	}
	return c.GetByID(ctx, id)
}

func commentNotFound(id string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.KindNotFound, apperrors.CodeCommentNotFound,
		"Comment {id} does not exist!", map[string]string{"id": id})
}

func (c *Concept) GetByID(ctx context.Context, id string) (Comment, error) {
	comment, err := c.comments.ReadOne(ctx, database.ByID(id))
	if err != nil {
		return Comment{}, apperrors.Unavailable(err)
	}
	if comment == nil {
		return Comment{}, commentNotFound(id)
	}
	return *comment, nil
}

// GetComments returns every comment, newest first.
func (c *Concept) GetComments(ctx context.Context) ([]Comment, error) {
	return c.read(ctx, nil)
}

func (c *Concept) GetByAuthor(ctx context.Context, author string) ([]Comment, error) {
	return c.read(ctx, database.Where(database.Eq("author", author)))
}

func (c *Concept) GetByPost(ctx context.Context, post string) ([]Comment, error) {
	return c.read(ctx, database.Where(database.Eq("post", post)))
}

func (c *Concept) GetByAuthorAndPost(ctx context.Context, author, post string) ([]Comment, error) {
	return c.read(ctx, database.Where(database.Eq("author", author), database.Eq("post", post)))
}

func (c *Concept) read(ctx context.Context, filter database.Filter) ([]Comment, error) {
	comments, err := c.comments.ReadMany(ctx, filter, database.FindOptions{Sort: database.CreatedAtField, Desc: true})
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return comments, nil
}

func (c *Concept) Update(ctx context.Context, id string, patch Patch) error {
	fields := database.Fields{}
	if patch.Text != nil {
		fields["text"] = *patch.Text
	}
	if patch.Lyrics != nil {
		fields["lyrics"] = *patch.Lyrics
	}
	if patch.Image != nil {
		fields["image"] = *patch.Image
	}
	n, err := c.comments.PartialUpdateOne(ctx, database.ByID(id), fields)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return commentNotFound(id)
	}
	return nil
}

func (c *Concept) Delete(ctx context.Context, id string) error {
	n, err := c.comments.DeleteOne(ctx, database.ByID(id))
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return commentNotFound(id)
	}
	return nil
}

func (c *Concept) DeleteByAuthor(ctx context.Context, author string) (int64, error) {
	n, err := c.comments.DeleteMany(ctx, database.Where(database.Eq("author", author)))
	if err != nil {
		return 0, apperrors.Unavailable(err)
	}
	return n, nil
}

// AssertAuthorIsUser fails unless comment id exists and was written by user.
func (c *Concept) AssertAuthorIsUser(ctx context.Context, id, user string) error {
	comment, err := c.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if comment.Author != user {
		return apperrors.WithMetadata(apperrors.KindNotAllowed, apperrors.CodeCommentAuthorMismatch,
			"{author} is not the author of comment {id}!", map[string]string{"author": user, "id": id})
	}
	return nil
}

func (c *Concept) GetNotExpiredComments(ctx context.Context) ([]Comment, error) {
	comments, err := c.GetComments(ctx)
	if err != nil {
		return nil, err
	}
	return c.FilterNotExpired(comments, c.Now()), nil
}

func (c *Concept) GetNotExpiredByAuthor(ctx context.Context, author string) ([]Comment, error) {
	comments, err := c.GetByAuthor(ctx, author)
	if err != nil {
		return nil, err
	}
	return c.FilterNotExpired(comments, c.Now()), nil
}

// IsExpired reports whether the comment's age, |now - createdAt|, exceeds
// the expiry.
func (c *Concept) IsExpired(comment Comment, now time.Time) bool {
	age := now.Sub(comment.CreatedAt)
	if age < 0 {
		age = -age
	}
	return age > c.expiry
}

func (c *Concept) FilterNotExpired(comments []Comment, now time.Time) []Comment {
	out := make([]Comment, 0, len(comments))
	for _, comment := range comments {
		if !c.IsExpired(comment, now) {
			out = append(out, comment)
		}
	}
	return out
}

func (c *Concept) Classify(comments []Comment, now time.Time) []Classified {
	out := make([]Classified, len(comments))
	for i, comment := range comments {
		out[i] = Classified{Comment: comment, Expired: c.IsExpired(comment, now)}
	}
	return out
}
