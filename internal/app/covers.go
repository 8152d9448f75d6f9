package app

import (
	"context"
	"time"

	"tunefriends/internal/concepts/commenting"
	apperrors "tunefriends/internal/errors"
)

// Covers are permanent comments on songs that their author can lock.
// Snapshots are comments that expire a day after creation.

// GetCovers lists covers filtered by author id and song id when given.
func (a *App) GetCovers(ctx context.Context, authorID, songID string) ([]CommentView, error) {
	var (
		covers []commenting.Comment
		err    error
	)
	switch {
	case authorID != "" && songID != "":
		covers, err = a.Covering.GetByAuthorAndPost(ctx, authorID, songID)
	case authorID != "":
		covers, err = a.Covering.GetByAuthor(ctx, authorID)
	case songID != "":
		covers, err = a.Covering.GetByPost(ctx, songID)
	default:
		covers, err = a.Covering.GetComments(ctx)
	}
	if err != nil {
		return nil, err
	}
	return a.commentViews(ctx, covers)
}

// GetUnlockedCovers lists the covers, optionally only those by username,
// that no active lock holds. Expired locks are swept first.
func (a *App) GetUnlockedCovers(ctx context.Context, username string) ([]CommentView, error) {
	covers, err := a.readComments(ctx, a.Covering, username)
	if err != nil {
		return nil, err
	}
	locked, err := a.Locking.GetContentIDsAfterCleanup(ctx)
	if err != nil {
		return nil, err
	}
	held := make(map[string]struct{}, len(locked))
	for _, id := range locked {
		held[id] = struct{}{}
	}
	unlocked := covers[:0]
	for _, c := range covers {
		if _, ok := held[c.ID]; !ok {
			unlocked = append(unlocked, c)
		}
	}
	return a.commentViews(ctx, unlocked)
}

func (a *App) CreateCover(ctx context.Context, p Principal, songID, text, lyrics, image string) (CommentView, error) {
	cover, err := a.Covering.Create(ctx, songID, p.UserID, text, lyrics, image)
	if err != nil {
		return CommentView{}, err
	}
	return one(ctx, cover, a.commentViews)
}

func (a *App) UpdateCover(ctx context.Context, p Principal, id string, patch commenting.Patch) error {
	if err := a.Covering.AssertAuthorIsUser(ctx, id, p.UserID); err != nil {
		return err
	}
	return a.Covering.Update(ctx, id, patch)
}

// DeleteCover removes a cover and then every lock on it. Locks are only
// touched once the author check passed and the cover is gone.
func (a *App) DeleteCover(ctx context.Context, p Principal, id string) error {
	if err := a.Covering.AssertAuthorIsUser(ctx, id, p.UserID); err != nil {
		return err
	}
	if err := a.Covering.Delete(ctx, id); err != nil {
		return err
	}
	_, err := a.Locking.DeleteByContent(ctx, id)
	return err
}

// GetSnapshots lists snapshots, optionally only those by username, each
// flagged with whether it has expired.
func (a *App) GetSnapshots(ctx context.Context, username string) ([]CommentView, error) {
	snapshots, err := a.readComments(ctx, a.Snapshots, username)
	if err != nil {
		return nil, err
	}
	return a.classifiedViews(ctx, a.Snapshots.Classify(snapshots, a.Snapshots.Now()))
}

// GetActiveSnapshots lists the snapshots that have not expired.
func (a *App) GetActiveSnapshots(ctx context.Context, username string) ([]CommentView, error) {
	var (
		snapshots []commenting.Comment
		err       error
	)
	if username == "" {
		snapshots, err = a.Snapshots.GetNotExpiredComments(ctx)
	} else {
		var id string
		if id, err = a.userID(ctx, username); err != nil {
			return nil, err
		}
		snapshots, err = a.Snapshots.GetNotExpiredByAuthor(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return a.commentViews(ctx, snapshots)
}

func (a *App) CreateSnapshot(ctx context.Context, p Principal, songID, text, lyrics, image string) (CommentView, error) {
	snapshot, err := a.Snapshots.Create(ctx, songID, p.UserID, text, lyrics, image)
	if err != nil {
		return CommentView{}, err
	}
	return one(ctx, snapshot, a.commentViews)
}

func (a *App) DeleteSnapshot(ctx context.Context, p Principal, id string) error {
	if err := a.Snapshots.AssertAuthorIsUser(ctx, id, p.UserID); err != nil {
		return err
	}
	return a.Snapshots.Delete(ctx, id)
}

func (a *App) readComments(ctx context.Context, c *commenting.Concept, username string) ([]commenting.Comment, error) {
	if username == "" {
		return c.GetComments(ctx)
	}
	id, err := a.userID(ctx, username)
	if err != nil {
		return nil, err
	}
	return c.GetByAuthor(ctx, id)
}

// GetLocks lists the live locks, optionally only those held by the account
// named locker.
func (a *App) GetLocks(ctx context.Context, locker string) ([]LockView, error) {
	if locker == "" {
		locks, err := a.Locking.GetLocks(ctx)
		if err != nil {
			return nil, err
		}
		return a.lockViews(ctx, locks)
	}
	id, err := a.userID(ctx, locker)
	if err != nil {
		return nil, err
	}
	locks, err := a.Locking.GetByLocker(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.lockViews(ctx, locks)
}

// CreateLock locks the cover coverID over [from, to). Only the cover's
// author may lock it.
func (a *App) CreateLock(ctx context.Context, p Principal, coverID string, from, to time.Time) (LockView, error) {
	if err := a.Covering.AssertAuthorIsUser(ctx, coverID, p.UserID); err != nil {
		if apperrors.HasCode(err, apperrors.CodeCommentNotFound) {
			return LockView{}, apperrors.WithMetadata(apperrors.KindNotFound, apperrors.CodeTargetNotFound,
				"Cover {id} not found!", map[string]string{"id": coverID})
		}
		return LockView{}, err
	}
	lock, err := a.Locking.Create(ctx, coverID, p.UserID, from, to)
	if err != nil {
		return LockView{}, err
	}
	return one(ctx, lock, a.lockViews)
}

// GetLockedContent sweeps expired locks and returns the ids still locked.
func (a *App) GetLockedContent(ctx context.Context) ([]string, error) {
	return a.Locking.GetContentIDsAfterCleanup(ctx)
}
