// -------------------------------------------------------------------------------
// Service - User Operations
//
// Project: Streamlo
//
// Account lifecycle, follow graph and liked tracks. Follow and like run
// through the saga executor because each touches two documents; the first
// write of each saga is conditional, so a concurrent duplicate is caught by
// the write itself and nothing needs undoing.
// -------------------------------------------------------------------------------

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dunguyenn/StreamloWebservice/internal/auth"
	"github.com/dunguyenn/StreamloWebservice/internal/blob"
	"github.com/dunguyenn/StreamloWebservice/internal/entity"
	"github.com/dunguyenn/StreamloWebservice/internal/pagination"
	"github.com/dunguyenn/StreamloWebservice/internal/saga"
	"github.com/dunguyenn/StreamloWebservice/internal/store"
)

// Saga and step names reported in metrics, logs and error bodies.
const (
	sagaFollow       = "follow"
	sagaUnfollow     = "unfollow"
	sagaLike         = "like"
	sagaUnlike       = "unlike"
	sagaProfileImage = "profile-image-replace"

	stepLinkFollowee     = "link followee"
	stepUnlinkFollowee   = "unlink followee"
	stepIncFollowers     = "increment follower count"
	stepDecFollowers     = "decrement follower count"
	stepLinkLikedTrack   = "link liked track"
	stepUnlinkLikedTrack = "unlink liked track"
	stepIncLikes         = "increment like count"
	stepDecLikes         = "decrement like count"
	stepWriteImage       = "write profile image blob"
	stepPointImage       = "point user at new image"
)

// -------------------------------------------------------------------------
// SERVICE
// -------------------------------------------------------------------------

// UserService implements account operations over the entity store and the
// blob store. Track delete cascades are delegated to the track service.
type UserService struct {
	users       store.UserStore
	trackSvc    *TrackService
	blobs       blob.Store
	exec        *saga.Executor
	logger      *slog.Logger
	imageBucket string
}

// NewUserService wires a user service.
func NewUserService(users store.UserStore, trackSvc *TrackService, blobs blob.Store,
	exec *saga.Executor, imageBucket string, logger *slog.Logger) *UserService {

	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:       users,
		trackSvc:    trackSvc,
		blobs:       blobs,
		exec:        exec,
		logger:      logger,
		imageBucket: imageBucket,
	}
}

// -------------------------------------------------------------------------
// SIGNUP / LOGIN
// -------------------------------------------------------------------------

// SignupInput carries a new account registration.
type SignupInput struct {
	Email       string
	Password    string
	UserURL     string
	DisplayName string
	City        string
}

func (in *SignupInput) validate() error {
	checks := []error{
		entity.ValidateEmail(in.Email),
		entity.ValidatePassword(in.Password),
		entity.ValidateUserURL(in.UserURL),
		entity.ValidateDisplayName(in.DisplayName),
		entity.ValidateCity(in.City),
	}
	for _, err := range checks {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	return nil
}

// Signup creates an account with zeroed counters and empty relationship
// arrays. The email is case-folded before storage so lookups are
// case-insensitive.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*entity.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Email:          entity.NormalizeEmail(in.Email),
		Password:       hash,
		UserURL:        in.UserURL,
		DisplayName:    in.DisplayName,
		City:           in.City,
		LikedTracks:    []entity.LikedTrack{},
		Followees:      []entity.Followee{},
		UploadedTracks: []entity.UploadedTrack{},
	}

	id, err := s.users.Insert(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email or userURL already registered", ErrDuplicate)
		}
		return nil, err
	}
	user.ID = id
	return user, nil
}

// Login verifies credentials and returns the account. A missing account and a
// wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := s.users.FindByEmail(ctx, entity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(user.Password, password); err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	return user, nil
}

// -------------------------------------------------------------------------
// QUERIES
// -------------------------------------------------------------------------

// UserQuery narrows and pages a user search.
type UserQuery struct {
	DisplayName string
	UserURL     string
	City        string
	Page        int
	PerPage     int
}

// Get returns one user by id.
func (s *UserService) Get(ctx context.Context, id primitive.ObjectID) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

// Search returns one page of users. A userURL query is an exact match; a
// display-name query is a substring match; a city query is an exact match.
func (s *UserService) Search(ctx context.Context, q UserQuery) ([]entity.User, pagination.Meta, error) {
	if err := pagination.Validate(q.Page, q.PerPage); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if q.UserURL != "" {
		user, err := s.users.FindByUserURL(ctx, q.UserURL)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, pagination.Meta{}, fmt.Errorf("%w: user %q", ErrNotFound, q.UserURL)
			}
			return nil, pagination.Meta{}, err
		}
		// One match total; pages past it come back empty, not 404.
		items := pagination.Slice([]entity.User{*user}, q.Page, q.PerPage)
		return items, pagination.NewMeta(1, q.Page, q.PerPage), nil
	}

	users, total, err := s.users.Find(ctx, store.UserFilter{DisplayName: q.DisplayName, City: q.City}, q.Page, q.PerPage)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	if total == 0 {
		return nil, pagination.Meta{}, fmt.Errorf("%w: no users match", ErrNotFound)
	}
	return users, pagination.NewMeta(int(total), q.Page, q.PerPage), nil
}

// Followees returns one page of the accounts a user follows.
func (s *UserService) Followees(ctx context.Context, userID primitive.ObjectID, page, perPage int) ([]entity.Followee, pagination.Meta, error) {
	if err := pagination.Validate(page, perPage); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return pagination.Slice(user.Followees, page, perPage),
		pagination.NewMeta(len(user.Followees), page, perPage), nil
}

// LikedTracks returns one page of the tracks a user has liked.
func (s *UserService) LikedTracks(ctx context.Context, userID primitive.ObjectID, page, perPage int) ([]entity.LikedTrack, pagination.Meta, error) {
	if err := pagination.Validate(page, perPage); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return pagination.Slice(user.LikedTracks, page, perPage),
		pagination.NewMeta(len(user.LikedTracks), page, perPage), nil
}

// -------------------------------------------------------------------------
// PROFILE
// -------------------------------------------------------------------------

// UpdateProfileInput carries a partial profile update. Empty fields are left
// unchanged.
type UpdateProfileInput struct {
	Email       string
	Password    string
	UserURL     string
	DisplayName string
	City        string
}

// UpdateProfile applies a partial update to the requester's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID, requesterID primitive.ObjectID, in UpdateProfileInput) error {
	if userID != requesterID {
		return fmt.Errorf("%w: accounts may only modify themselves", ErrForbidden)
	}

	update := entity.UserProfileUpdate{
		UserURL:     in.UserURL,
		DisplayName: in.DisplayName,
		City:        in.City,
	}

	if in.Email != "" {
		if err := entity.ValidateEmail(in.Email); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		update.Email = entity.NormalizeEmail(in.Email)
	}
	if in.Password != "" {
		if err := entity.ValidatePassword(in.Password); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return err
		}
		update.Password = hash
	}
	if in.UserURL != "" {
		if err := entity.ValidateUserURL(in.UserURL); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	if in.DisplayName != "" {
		if err := entity.ValidateDisplayName(in.DisplayName); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	if in.City != "" {
		if err := entity.ValidateCity(in.City); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}

	if err := s.users.UpdateProfile(ctx, userID, update); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return fmt.Errorf("%w: email or userURL already registered", ErrDuplicate)
		case errors.Is(err, store.ErrNoMatch):
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return err
	}
	return nil
}

// SetProfileImage replaces the requester's profile image: new blob first,
// then the document pointer, then a best-effort delete of the old blob. A
// failed old-blob delete is logged as an orphan, never rolled back.
func (s *UserService) SetProfileImage(ctx context.Context, userID, requesterID primitive.ObjectID, data []byte, contentType string) error {
	if userID != requesterID {
		return fmt.Errorf("%w: accounts may only modify themselves", ErrForbidden)
	}
	if len(data) == 0 {
		return invalidf("image file is required")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	oldBlobID := user.ProfileImageBlobID

	var newBlobID string
	steps := []saga.Step{
		{
			Name: stepWriteImage,
			Forward: func(ctx context.Context) error {
				id, err := blob.WriteBuffer(ctx, s.blobs, s.imageBucket, contentType, data)
				if err != nil {
					return err
				}
				newBlobID = id
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.blobs.Delete(ctx, s.imageBucket, newBlobID)
			},
		},
		{
			Name: stepPointImage,
			Forward: func(ctx context.Context) error {
				return s.users.SetProfileImage(ctx, userID, newBlobID)
			},
			Compensate: func(ctx context.Context) error {
				return s.users.SetProfileImage(ctx, userID, oldBlobID)
			},
		},
	}

	res := s.exec.Run(ctx, sagaProfileImage, steps)
	if !res.OK() {
		if res.State == saga.StateCompensated && res.FailedStep == stepPointImage && errors.Is(res.Err, store.ErrNoMatch) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return sagaError(res)
	}

	if oldBlobID != "" {
		if err := s.blobs.Delete(ctx, s.imageBucket, oldBlobID); err != nil {
			s.logger.Warn("old profile image blob orphaned",
				"userId", userID.Hex(), "blobId", oldBlobID, "error", err)
		}
	}
	return nil
}

// -------------------------------------------------------------------------
// DELETE CASCADE
// -------------------------------------------------------------------------

// Delete removes the requester's own account, then cascades: every uploaded
// track is deleted in parallel and the profile image blob is removed
// best-effort. Followees' follower counters are intentionally not repaired.
func (s *UserService) Delete(ctx context.Context, userID, requesterID primitive.ObjectID) error {
	if userID != requesterID {
		return fmt.Errorf("%w: accounts may only delete themselves", ErrForbidden)
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return err
	}

	// --- Fan out per-track cascades; one failure never blocks the rest ---
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []primitive.ObjectID

	for _, ut := range user.UploadedTracks {
		wg.Add(1)
		go func(trackID primitive.ObjectID) {
			defer wg.Done()
			if err := s.trackSvc.deleteCascade(ctx, trackID); err != nil {
				s.logger.Warn("track cascade failed during account delete",
					"userId", userID.Hex(), "trackId", trackID.Hex(), "error", err)
				mu.Lock()
				failed = append(failed, trackID)
				mu.Unlock()
			}
		}(ut.TrackID)
	}
	wg.Wait()

	if user.ProfileImageBlobID != "" {
		if err := s.blobs.Delete(ctx, s.imageBucket, user.ProfileImageBlobID); err != nil {
			s.logger.Warn("profile image blob orphaned after account delete",
				"userId", userID.Hex(), "blobId", user.ProfileImageBlobID, "error", err)
		}
	}

	if len(failed) > 0 {
		s.logger.Error("account deleted with orphaned tracks",
			"userId", userID.Hex(), "orphanedTracks", len(failed))
	}
	return nil
}

// -------------------------------------------------------------------------
// FOLLOW / UNFOLLOW
// -------------------------------------------------------------------------

// Follow adds followeeID to the requester's followee list and bumps both
// sides' counters. The follower-side write is conditional, so a concurrent
// duplicate follow is caught by the write with nothing committed.
func (s *UserService) Follow(ctx context.Context, followerID, followeeID, requesterID primitive.ObjectID) error {
	if followerID != requesterID {
		return fmt.Errorf("%w: accounts may only manage their own followees", ErrForbidden)
	}
	if followerID == followeeID {
		return invalidf("an account cannot follow itself")
	}

	// --- Preconditions ---
	follower, err := s.users.FindByID(ctx, followerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no account associated with follower id", ErrNotFound)
		}
		return err
	}
	if _, err := s.users.FindByID(ctx, followeeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no account associated with followee id", ErrNotFound)
		}
		return err
	}
	for _, f := range follower.Followees {
		if f.UserID == followeeID {
			return fmt.Errorf("%w: already following this account", ErrDuplicate)
		}
	}

	steps := []saga.Step{
		{
			Name: stepLinkFollowee,
			Forward: func(ctx context.Context) error {
				return s.users.AddFollowee(ctx, followerID, followeeID)
			},
			Compensate: func(ctx context.Context) error {
				return s.users.RemoveFollowee(ctx, followerID, followeeID)
			},
		},
		{
			Name: stepIncFollowers,
			Forward: func(ctx context.Context) error {
				return s.users.IncFollowers(ctx, followeeID, 1)
			},
		},
	}

	res := s.exec.Run(ctx, sagaFollow, steps)
	if res.OK() {
		return nil
	}
	if res.State == saga.StateCompensated {
		switch {
		// Precondition passed but the conditional write missed: a
		// concurrent follow won the race.
		case res.FailedStep == stepLinkFollowee && errors.Is(res.Err, store.ErrNoMatch):
			return fmt.Errorf("%w: already following this account", ErrDuplicate)
		case res.FailedStep == stepIncFollowers && errors.Is(res.Err, store.ErrNoMatch):
			return fmt.Errorf("%w: no account associated with followee id", ErrNotFound)
		}
	}
	return sagaError(res)
}

// Unfollow removes followeeID from the requester's followee list and
// decrements both sides' counters.
func (s *UserService) Unfollow(ctx context.Context, followerID, followeeID, requesterID primitive.ObjectID) error {
	if followerID != requesterID {
		return fmt.Errorf("%w: accounts may only manage their own followees", ErrForbidden)
	}

	steps := []saga.Step{
		{
			Name: stepUnlinkFollowee,
			Forward: func(ctx context.Context) error {
				return s.users.RemoveFollowee(ctx, followerID, followeeID)
			},
			Compensate: func(ctx context.Context) error {
				return s.users.AddFollowee(ctx, followerID, followeeID)
			},
		},
		{
			Name: stepDecFollowers,
			Forward: func(ctx context.Context) error {
				return s.users.IncFollowers(ctx, followeeID, -1)
			},
		},
	}

	res := s.exec.Run(ctx, sagaUnfollow, steps)
	if res.OK() {
		return nil
	}
	if res.State == saga.StateCompensated {
		switch {
		case res.FailedStep == stepUnlinkFollowee && errors.Is(res.Err, store.ErrNoMatch):
			return fmt.Errorf("%w: not following this account", ErrNotFound)
		case res.FailedStep == stepDecFollowers && errors.Is(res.Err, store.ErrNoMatch):
			return fmt.Errorf("%w: no account associated with followee id", ErrNotFound)
		}
	}
	return sagaError(res)
}

// -------------------------------------------------------------------------
// LIKE / UNLIKE
// -------------------------------------------------------------------------

// Like records a track like: a conditional entry in the requester's
// likedTracks, then the track's like counter.
func (s *UserService) Like(ctx context.Context, userID, trackID, requesterID primitive.ObjectID) error {
	if userID != requesterID {
		return fmt.Errorf("%w: accounts may only manage their own likes", ErrForbidden)
	}

	// --- Preconditions ---
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return err
	}
	if _, err := s.trackSvc.Get(ctx, trackID); err != nil {
		return err
	}
	for _, lt := range user.LikedTracks {
		if lt.TrackID == trackID {
			return fmt.Errorf("%w: track already liked", ErrDuplicate)
		}
	}

	steps := []saga.Step{
		{
			Name: stepLinkLikedTrack,
			Forward: func(ctx context.Context) error {
				return s.users.AddLikedTrack(ctx, userID, trackID)
			},
			Compensate: func(ctx context.Context) error {
				return s.users.RemoveLikedTrack(ctx, userID, trackID)
			},
		},
		{
			Name: stepIncLikes,
			Forward: func(ctx context.Context) error {
				return s.trackSvc.tracks.IncLikes(ctx, trackID, 1)
			},
		},
	}

	res := s.exec.Run(ctx, sagaLike, steps)
	if res.OK() {
		return nil
	}
	if res.State == saga.StateCompensated {
		switch {
		case res.FailedStep == stepLinkLikedTrack && errors.Is(res.Err, store.ErrNoMatch):
			return fmt.Errorf("%w: track already liked", ErrDuplicate)
		case res.FailedStep == stepIncLikes && errors.Is(res.Err, store.ErrNoMatch):
			return fmt.Errorf("%w: track", ErrNotFound)
		}
	}
	return sagaError(res)
}

// Unlike removes a track like and decrements the track's like counter.
func (s *UserService) Unlike(ctx context.Context, userID, trackID, requesterID primitive.ObjectID) error {
	if userID != requesterID {
		return fmt.Errorf("%w: accounts may only manage their own likes", ErrForbidden)
	}

	steps := []saga.Step{
		{
			Name: stepUnlinkLikedTrack,
			Forward: func(ctx context.Context) error {
				return s.users.RemoveLikedTrack(ctx, userID, trackID)
			},
			Compensate: func(ctx context.Context) error {
				return s.users.AddLikedTrack(ctx, userID, trackID)
			},
		},
		{
			Name: stepDecLikes,
			Forward: func(ctx context.Context) error {
				return s.trackSvc.tracks.IncLikes(ctx, trackID, -1)
			},
		},
	}

	res := s.exec.Run(ctx, sagaUnlike, steps)
	if res.OK() {
		return nil
	}
	if res.State == saga.StateCompensated {
		switch {
		case res.FailedStep == stepUnlinkLikedTrack && errors.Is(res.Err, store.ErrNoMatch):
			return fmt.Errorf("%w: track is not liked", ErrNotFound)
		case res.FailedStep == stepDecLikes && errors.Is(res.Err, store.ErrNoMatch):
			return fmt.Errorf("%w: track", ErrNotFound)
		}
	}
	return sagaError(res)
}
