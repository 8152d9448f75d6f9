// Package authenticating owns user accounts: credentials, usernames and
// external identities.
package authenticating

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tunefriends/internal/database"
	apperrors "tunefriends/internal/errors"
)

// DeletedUsername stands in for ids whose account no longer exists.
const DeletedUsername = "DELETED_USER"

type Account struct {
	database.Doc `bson:",inline"`
	Username     string `bson:"username" json:"username"`
	ExternalID   string `bson:"externalId,omitempty" json:"externalId,omitempty"`
	PasswordHash string `bson:"passwordHash,omitempty" json:"passwordHash,omitempty"`
	DisplayName  string `bson:"displayName,omitempty" json:"displayName,omitempty"`
	ProfileURL   string `bson:"profileUrl,omitempty" json:"profileUrl,omitempty"`
	ProfileImage string `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
}

// Profile is an account without its credentials.
type Profile struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	ExternalID   string    `json:"externalId,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"`
	ProfileURL   string    `json:"profileUrl,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"dateCreated"`
	UpdatedAt    time.Time `json:"dateUpdated"`
}

func (a Account) Redact() Profile {
	return Profile{
		ID:           a.ID,
		Username:     a.Username,
		ExternalID:   a.ExternalID,
		DisplayName:  a.DisplayName,
		ProfileURL:   a.ProfileURL,
		ProfileImage: a.ProfileImage,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// ExternalIdentity is what a third-party login provider reports about a user.
type ExternalIdentity struct {
	ExternalID   string
	DisplayName  string
	ProfileURL   string
	ProfileImage string
}

type Concept struct {
	accounts   *database.Collection[Account]
	bcryptCost int
}

type Option func(*Concept)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(c *Concept) { c.bcryptCost = cost }
}

func New(ctx context.Context, d database.DatabaseDriver, collection string, now database.Clock, opts ...Option) (*Concept, error) {
	accounts, err := database.NewCollection[Account](ctx, d, collection, now)
	if err != nil {
		return nil, err
	}
	for _, field := range []string{"username", "externalId"} {
		if err := accounts.CreateUniqueIndex(ctx, field); err != nil {
			return nil, err
		}
	}
	c := &Concept{accounts: accounts, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func userNotFound() *apperrors.Error {
	return apperrors.New(apperrors.KindNotFound, apperrors.CodeUserNotFound, "User not found!")
}

func usernameTaken(username string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.KindNotAllowed, apperrors.CodeUsernameTaken,
		"User with username {username} already exists!", map[string]string{"username": username})
}

// Create registers a password account.
func (c *Concept) Create(ctx context.Context, username, password string) (Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Profile{}, apperrors.BadValues("Username and password must be non-empty!")
	}
	if err := c.assertUsernameUnique(ctx, username); err != nil {
		return Profile{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.bcryptCost)
	if err != nil {
		return Profile{}, apperrors.BadValues(fmt.Sprintf("Password cannot be used: %v", err))
	}
	return c.insert(ctx, Account{Username: username, PasswordHash: string(hash)})
}

func (c *Concept) insert(ctx context.Context, account Account) (Profile, error) {
	id, err := c.accounts.CreateOne(ctx, account)
	if errors.Is(err, database.ErrAlreadyExists) {
		return Profile{}, usernameTaken(account.Username)
	}
	if err != nil {
		return Profile{}, apperrors.Unavailable(err)
	}
	return c.GetByID(ctx, id)
}

// Authenticate checks a username and password and returns the account id.
func (c *Concept) Authenticate(ctx context.Context, username, password string) (string, error) {
	account, err := c.accounts.ReadOne(ctx, database.Where(database.Eq("username", username)))
	if err != nil {
		return "", apperrors.Unavailable(err)
	}
	invalid := apperrors.New(apperrors.KindNotAllowed, apperrors.CodeInvalidCredentials, "Username or password is incorrect.")
	if account == nil || account.PasswordHash == "" {
		return "", invalid
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return "", invalid
	}
	return account.ID, nil
}

func (c *Concept) read(ctx context.Context, filter database.Filter) (*Account, error) {
	account, err := c.accounts.ReadOne(ctx, filter)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	if account == nil {
		return nil, userNotFound()
	}
	return account, nil
}

func (c *Concept) GetByID(ctx context.Context, id string) (Profile, error) {
	account, err := c.read(ctx, database.ByID(id))
	if err != nil {
		return Profile{}, err
	}
	return account.Redact(), nil
}

func (c *Concept) GetByUsername(ctx context.Context, username string) (Profile, error) {
	account, err := c.read(ctx, database.Where(database.Eq("username", username)))
	if err != nil {
		return Profile{}, err
	}
	return account.Redact(), nil
}

// GetUsers lists every account, or only the one named username when it is
// non-empty.
func (c *Concept) GetUsers(ctx context.Context, username string) ([]Profile, error) {
	var filter database.Filter
	if username != "" {
		filter = database.Where(database.Eq("username", username))
	}
	accounts, err := c.accounts.ReadMany(ctx, filter, database.FindOptions{Sort: "username"})
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	out := make([]Profile, len(accounts))
	for i, a := range accounts {
		out[i] = a.Redact()
	}
	return out, nil
}

// IDsToUsernames maps ids to usernames in order. Unknown ids map to
// DeletedUsername.
func (c *Concept) IDsToUsernames(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	accounts, err := c.accounts.ReadMany(ctx, database.Where(database.InStrings(database.IDField, ids)), database.FindOptions{})
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	byID := make(map[string]string, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a.Username
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		name, ok := byID[id]
		if !ok {
			name = DeletedUsername
		}
		out[i] = name
	}
	return out, nil
}

func (c *Concept) UpdateUsername(ctx context.Context, id, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperrors.BadValues("Username must be non-empty!")
	}
	if err := c.assertUsernameUnique(ctx, username); err != nil {
		return err
	}
	n, err := c.accounts.PartialUpdateOne(ctx, database.ByID(id), database.Fields{"username": username})
	if errors.Is(err, database.ErrAlreadyExists) {
		return usernameTaken(username)
	}
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return userNotFound()
	}
	return nil
}

func (c *Concept) UpdatePassword(ctx context.Context, id, current, next string) error {
	if next == "" {
		return apperrors.BadValues("Password must be non-empty!")
	}
	account, err := c.read(ctx, database.ByID(id))
	if err != nil {
		return err
	}
	if account.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)) != nil {
		return apperrors.New(apperrors.KindNotAllowed, apperrors.CodeWrongPassword, "The given current password is wrong!")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), c.bcryptCost)
	if err != nil {
		return apperrors.BadValues(fmt.Sprintf("Password cannot be used: %v", err))
	}
	if _, err := c.accounts.PartialUpdateOne(ctx, database.ByID(id), database.Fields{"passwordHash": string(hash)}); err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

func (c *Concept) Delete(ctx context.Context, id string) error {
	n, err := c.accounts.DeleteOne(ctx, database.ByID(id))
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return userNotFound()
	}
	return nil
}

func (c *Concept) AssertUserExists(ctx context.Context, id string) error {
	_, err := c.read(ctx, database.ByID(id))
	return err
}

// LoginByExternalID returns the account linked to identity, creating it on
// first sight. New accounts take the display name as username, suffixed
// with the external id when that name is already in use.
func (c *Concept) LoginByExternalID(ctx context.Context, identity ExternalIdentity) (Profile, error) {
	if strings.TrimSpace(identity.ExternalID) == "" {
		return Profile{}, apperrors.BadValues("External id must be non-empty!")
	}
	existing, err := c.accounts.ReadOne(ctx, database.Where(database.Eq("externalId", identity.ExternalID)))
	if err != nil {
		return Profile{}, apperrors.Unavailable(err)
	}
	if existing != nil {
		return existing.Redact(), nil
	}

	username := strings.TrimSpace(identity.DisplayName)
	if username == "" {
		username = identity.ExternalID
	}
	if err := c.assertUsernameUnique(ctx, username); err != nil {
		if !apperrors.HasCode(err, apperrors.CodeUsernameTaken) {
			return Profile{}, err
		}
		username = username + "-" + identity.ExternalID
	}
	return c.insert(ctx, Account{
		Username:     username,
		ExternalID:   identity.ExternalID,
		DisplayName:  identity.DisplayName,
		ProfileURL:   identity.ProfileURL,
		ProfileImage: identity.ProfileImage,
	})
}

func (c *Concept) FindByExternalID(ctx context.Context, externalID string) (Profile, error) {
	account, err := c.read(ctx, database.Where(database.Eq("externalId", externalID)))
	if err != nil {
		return Profile{}, err
	}
	return account.Redact(), nil
}

func (c *Concept) assertUsernameUnique(ctx context.Context, username string) error {
	existing, err := c.accounts.ReadOne(ctx, database.Where(database.Eq("username", username)))
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if existing != nil {
		return usernameTaken(username)
	}
	return nil
}
