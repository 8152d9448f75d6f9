package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tunefriends/internal/app"
	"tunefriends/internal/concepts/authenticating"
	"tunefriends/internal/concepts/commenting"
	"tunefriends/internal/concepts/posting"
	apperrors "tunefriends/internal/errors"
)

// Handler serves one route for an already resolved caller. A msg result is
// written as {"msg": ...}; anything else is encoded as is.
type Handler func(c *gin.Context, p app.Principal) (any, error)

type Route struct {
	Method  string
	Path    string
	Auth    Auth
	Handler Handler
}

type msg string

func (s *Server) wrap(route Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.principal(c, route.Auth)
		if !ok {
			return
		}
		out, err := route.Handler(c, p)
		if err != nil {
			s.fail(c, err)
			return
		}
		if c.Writer.Written() {
			return
		}
		if m, ok := out.(msg); ok {
			c.JSON(http.StatusOK, gin.H{"msg": string(m)})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// body decodes and validates the JSON body into T before calling h.
func body[T any](h func(*gin.Context, app.Principal, T) (any, error)) Handler {
	return func(c *gin.Context, p app.Principal) (any, error) {
		var req T
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, apperrors.BadValues(err.Error())
		}
		return h(c, p, req)
	}
}

// query binds the query string into T before calling h.
func query[T any](h func(*gin.Context, app.Principal, T) (any, error)) Handler {
	return func(c *gin.Context, p app.Principal) (any, error) {
		var req T
		if err := c.ShouldBindQuery(&req); err != nil {
			return nil, apperrors.BadValues(err.Error())
		}
		return h(c, p, req)
	}
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type externalLogin struct {
	ExternalID   string `json:"externalId" binding:"required"`
	DisplayName  string `json:"displayName"`
	ProfileURL   string `json:"profileUrl"`
	ProfileImage string `json:"profileImage"`
}

type usernameQuery struct {
	Username string `form:"username"`
}

type renameRequest struct {
	Username string `json:"username" binding:"required"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type trackRequest struct {
	TrackID    string `json:"trackId" binding:"required"`
	Artist     string `json:"artist"`
	Name       string `json:"name"`
	Album      string `json:"album"`
	AlbumCover string `json:"albumCover"`
	URL        string `json:"url"`
	Lyrics     string `json:"lyrics"`
}

type coverQuery struct {
	UserID string `form:"userId"`
	SongID string `form:"songId"`
}

type commentRequest struct {
	SongID string `json:"songId" binding:"required"`
	Text   string `json:"text"`
	Lyrics string `json:"lyrics"`
	Image  string `json:"image"`
}

type commentPatch struct {
	Text   *string `json:"text"`
	Lyrics *string `json:"lyrics"`
	Image  *string `json:"image"`
}

type lockerQuery struct {
	Locker string `form:"locker"`
}

type lockRequest struct {
	Comment string    `json:"comment" binding:"required"`
	From    time.Time `json:"from" binding:"required"`
	To      time.Time `json:"to" binding:"required"`
}

// loggedIn sets the session cookie and renders the login response.
func (s *Server) loggedIn(c *gin.Context, login app.LoginResult) gin.H {
	c.SetCookie(sessionCookie, login.Token, int(s.app.Sessioning.TTL().Seconds()), "/", "", s.secure, true)
	return gin.H{"msg": "Logged in!", "token": login.Token, "expiresAt": login.ExpiresAt, "user": login.User}
}

func (s *Server) routes() []Route {
	a := s.app
	return []Route{
		// Accounts
		{http.MethodGet, "/api/session", User, func(c *gin.Context, p app.Principal) (any, error) {
			return a.GetSessionUser(c.Request.Context(), p)
		}},
		{http.MethodGet, "/api/users", Public, query(func(c *gin.Context, _ app.Principal, q usernameQuery) (any, error) {
			return a.GetUsers(c.Request.Context(), q.Username)
		})},
		{http.MethodGet, "/api/users/:username", Public, func(c *gin.Context, _ app.Principal) (any, error) {
			return a.GetUser(c.Request.Context(), c.Param("username"))
		}},
		{http.MethodGet, "/api/accounts/:id", Public, func(c *gin.Context, _ app.Principal) (any, error) {
			return a.GetAccount(c.Request.Context(), c.Param("id"))
		}},
		{http.MethodPost, "/api/users", Guest, body(func(c *gin.Context, _ app.Principal, req credentials) (any, error) {
			user, err := a.Register(c.Request.Context(), req.Username, req.Password)
			if err != nil {
				return nil, err
			}
			return gin.H{"msg": "Created user successfully!", "user": user}, nil
		})},
		{http.MethodPost, "/api/login", Guest, body(func(c *gin.Context, _ app.Principal, req credentials) (any, error) {
			login, err := a.Login(c.Request.Context(), req.Username, req.Password)
			if err != nil {
				return nil, err
			}
			return s.loggedIn(c, login), nil
		})},
		{http.MethodPost, "/api/login/external", Guest, body(func(c *gin.Context, _ app.Principal, req externalLogin) (any, error) {
			login, err := a.LoginExternal(c.Request.Context(), authenticating.ExternalIdentity{
				ExternalID:   req.ExternalID,
				DisplayName:  req.DisplayName,
				ProfileURL:   req.ProfileURL,
				ProfileImage: req.ProfileImage,
			})
			if err != nil {
				return nil, err
			}
			return s.loggedIn(c, login), nil
		})},
		{http.MethodPost, "/api/logout", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.Logout(c.Request.Context(), p); err != nil {
				return nil, err
			}
			c.SetCookie(sessionCookie, "", -1, "/", "", s.secure, true)
			return msg("Logged out!"), nil
		}},
		{http.MethodPatch, "/api/users/username", User, body(func(c *gin.Context, p app.Principal, req renameRequest) (any, error) {
			if err := a.UpdateUsername(c.Request.Context(), p, req.Username); err != nil {
				return nil, err
			}
			return msg("Updated username successfully!"), nil
		})},
		{http.MethodPatch, "/api/users/password", User, body(func(c *gin.Context, p app.Principal, req passwordRequest) (any, error) {
			if err := a.UpdatePassword(c.Request.Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
				return nil, err
			}
			return msg("Updated password successfully!"), nil
		})},
		{http.MethodDelete, "/api/users", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.DeleteUser(c.Request.Context(), p); err != nil {
				return nil, err
			}
			c.SetCookie(sessionCookie, "", -1, "/", "", s.secure, true)
			return msg("Deleted user!"), nil
		}},

		// Songs
		{http.MethodGet, "/api/songs", Public, query(func(c *gin.Context, _ app.Principal, q usernameQuery) (any, error) {
			return a.GetSongs(c.Request.Context(), q.Username)
		})},
		{http.MethodGet, "/api/songs/:id", Public, func(c *gin.Context, _ app.Principal) (any, error) {
			return a.GetSong(c.Request.Context(), c.Param("id"))
		}},
		{http.MethodGet, "/api/songs/recent", User, func(c *gin.Context, p app.Principal) (any, error) {
			return a.GetRecentSong(c.Request.Context(), p)
		}},
		{http.MethodPost, "/api/songs", User, body(func(c *gin.Context, p app.Principal, req trackRequest) (any, error) {
			song, created, err := a.ShareSong(c.Request.Context(), p, posting.Track{
				TrackID:    req.TrackID,
				Artist:     req.Artist,
				Name:       req.Name,
				Album:      req.Album,
				AlbumCover: req.AlbumCover,
				URL:        req.URL,
				Lyrics:     req.Lyrics,
			})
			if err != nil {
				return nil, err
			}
			m := "Song shared!"
			if !created {
				m = "Song already shared, refreshed it!"
			}
			return gin.H{"msg": m, "song": song, "created": created}, nil
		})},
		{http.MethodPatch, "/api/songs/:id", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.TouchSong(c.Request.Context(), p, c.Param("id")); err != nil {
				return nil, err
			}
			return msg("Song updated successfully!"), nil
		}},
		{http.MethodDelete, "/api/songs/:id", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.DeleteSong(c.Request.Context(), p, c.Param("id")); err != nil {
				return nil, err
			}
			return msg("Song deleted successfully!"), nil
		}},

		// Friends
		{http.MethodGet, "/api/friends", User, func(c *gin.Context, p app.Principal) (any, error) {
			return a.GetFriends(c.Request.Context(), p)
		}},
		{http.MethodDelete, "/api/friends/:friend", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.RemoveFriend(c.Request.Context(), p, c.Param("friend")); err != nil {
				return nil, err
			}
			return msg("Removed friend!"), nil
		}},
		{http.MethodGet, "/api/friend/requests", User, func(c *gin.Context, p app.Principal) (any, error) {
			return a.GetRequests(c.Request.Context(), p)
		}},
		{http.MethodGet, "/api/friend/incoming-requests", User, func(c *gin.Context, p app.Principal) (any, error) {
			return a.GetIncomingRequests(c.Request.Context(), p)
		}},
		{http.MethodGet, "/api/friend/outgoing-requests", User, func(c *gin.Context, p app.Principal) (any, error) {
			return a.GetOutgoingRequests(c.Request.Context(), p)
		}},
		{http.MethodPost, "/api/friend/requests/:to", User, func(c *gin.Context, p app.Principal) (any, error) {
			req, err := a.SendFriendRequest(c.Request.Context(), p, c.Param("to"))
			if err != nil {
				return nil, err
			}
			return gin.H{"msg": "Sent request!", "request": req}, nil
		}},
		{http.MethodDelete, "/api/friend/requests/:to", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.RemoveFriendRequest(c.Request.Context(), p, c.Param("to")); err != nil {
				return nil, err
			}
			return msg("Removed request!"), nil
		}},
		{http.MethodPut, "/api/friend/accept/:from", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.AcceptFriendRequest(c.Request.Context(), p, c.Param("from")); err != nil {
				return nil, err
			}
			return msg("Accepted request!"), nil
		}},
		{http.MethodPut, "/api/friend/reject/:from", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.RejectFriendRequest(c.Request.Context(), p, c.Param("from")); err != nil {
				return nil, err
			}
			return msg("Rejected request!"), nil
		}},

		// Covers
		{http.MethodGet, "/api/covers", Public, query(func(c *gin.Context, _ app.Principal, q coverQuery) (any, error) {
			return a.GetCovers(c.Request.Context(), q.UserID, q.SongID)
		})},
		{http.MethodGet, "/api/covers/unlocked", Public, query(func(c *gin.Context, _ app.Principal, q usernameQuery) (any, error) {
			return a.GetUnlockedCovers(c.Request.Context(), q.Username)
		})},
		{http.MethodPost, "/api/covers", User, body(func(c *gin.Context, p app.Principal, req commentRequest) (any, error) {
			cover, err := a.CreateCover(c.Request.Context(), p, req.SongID, req.Text, req.Lyrics, req.Image)
			if err != nil {
				return nil, err
			}
			return gin.H{"msg": "Cover created successfully!", "cover": cover}, nil
		})},
		{http.MethodPatch, "/api/covers/:id", User, body(func(c *gin.Context, p app.Principal, req commentPatch) (any, error) {
			patch := commenting.Patch{Text: req.Text, Lyrics: req.Lyrics, Image: req.Image}
			if err := a.UpdateCover(c.Request.Context(), p, c.Param("id"), patch); err != nil {
				return nil, err
			}
			return msg("Cover updated successfully!"), nil
		})},
		{http.MethodDelete, "/api/covers/:id", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.DeleteCover(c.Request.Context(), p, c.Param("id")); err != nil {
				return nil, err
			}
			return msg("Cover deleted successfully!"), nil
		}},

		// Snapshots
		{http.MethodGet, "/api/snapshots", Public, query(func(c *gin.Context, _ app.Principal, q usernameQuery) (any, error) {
			return a.GetSnapshots(c.Request.Context(), q.Username)
		})},
		{http.MethodGet, "/api/snapshots/active", Public, query(func(c *gin.Context, _ app.Principal, q usernameQuery) (any, error) {
			return a.GetActiveSnapshots(c.Request.Context(), q.Username)
		})},
		{http.MethodPost, "/api/snapshots", User, body(func(c *gin.Context, p app.Principal, req commentRequest) (any, error) {
			snapshot, err := a.CreateSnapshot(c.Request.Context(), p, req.SongID, req.Text, req.Lyrics, req.Image)
			if err != nil {
				return nil, err
			}
			return gin.H{"msg": "Snapshot created successfully!", "snapshot": snapshot}, nil
		})},
		{http.MethodDelete, "/api/snapshots/:id", User, func(c *gin.Context, p app.Principal) (any, error) {
			if err := a.DeleteSnapshot(c.Request.Context(), p, c.Param("id")); err != nil {
				return nil, err
			}
			return msg("Snapshot deleted successfully!"), nil
		}},

		// Locks
		{http.MethodGet, "/api/locks", Public, query(func(c *gin.Context, _ app.Principal, q lockerQuery) (any, error) {
			return a.GetLocks(c.Request.Context(), q.Locker)
		})},
		{http.MethodPost, "/api/locks", User, body(func(c *gin.Context, p app.Principal, req lockRequest) (any, error) {
			lock, err := a.CreateLock(c.Request.Context(), p, req.Comment, req.From, req.To)
			if err != nil {
				return nil, err
			}
			return gin.H{"msg": "Lock created successfully!", "lock": lock}, nil
		})},
	}
}
