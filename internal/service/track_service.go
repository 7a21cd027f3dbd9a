// -------------------------------------------------------------------------------
// Service - Track Operations
//
// Project: Streamlo
//
// Track upload, delete, edit, comment and query operations. Multi-document
// mutations run through the saga executor; queries and single-document edits
// do not. Preconditions are checked before the first write so validation
// failures never need compensation.
// -------------------------------------------------------------------------------

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dunguyenn/StreamloWebservice/internal/blob"
	"github.com/dunguyenn/StreamloWebservice/internal/entity"
	"github.com/dunguyenn/StreamloWebservice/internal/pagination"
	"github.com/dunguyenn/StreamloWebservice/internal/saga"
	"github.com/dunguyenn/StreamloWebservice/internal/store"
)

// Saga and step names reported in metrics, logs and error bodies.
const (
	sagaTrackUpload = "track-upload"

	stepWriteAudio    = "write audio blob"
	stepWriteAlbumArt = "write album art blob"
	stepCreateTrack   = "create track document"
	stepLinkUploader  = "link uploader"
)

// -------------------------------------------------------------------------
// SERVICE
// -------------------------------------------------------------------------

// TrackService implements track operations over the entity store and the
// blob store.
type TrackService struct {
	users  store.UserStore
	tracks store.TrackStore
	blobs  blob.Store
	exec   *saga.Executor
	logger *slog.Logger

	audioBucket string
	imageBucket string

	now func() time.Time
}

// NewTrackService wires a track service.
func NewTrackService(users store.UserStore, tracks store.TrackStore, blobs blob.Store,
	exec *saga.Executor, audioBucket, imageBucket string, logger *slog.Logger) *TrackService {

	if logger == nil {
		logger = slog.Default()
	}
	return &TrackService{
		users:       users,
		tracks:      tracks,
		blobs:       blobs,
		exec:        exec,
		logger:      logger,
		audioBucket: audioBucket,
		imageBucket: imageBucket,
		now:         time.Now,
	}
}

// -------------------------------------------------------------------------
// UPLOAD
// -------------------------------------------------------------------------

// UploadTrackInput carries a fully buffered track upload.
type UploadTrackInput struct {
	Title        string
	Genre        string
	Description  string
	TrackURL     string
	City         string
	UploaderID   primitive.ObjectID
	DateUploaded time.Time

	Audio            []byte
	AudioContentType string

	// AlbumArt is optional; nil means no art was submitted.
	AlbumArt            []byte
	AlbumArtContentType string
}

// validate checks every metadata field before any write happens.
func (in *UploadTrackInput) validate(now time.Time) error {
	checks := []error{
		entity.ValidateTitle(in.Title),
		entity.ValidateGenre(in.Genre),
		entity.ValidateDescription(in.Description),
		entity.ValidateTrackURL(in.TrackURL),
		entity.ValidateCity(in.City),
		entity.ValidateDateUploaded(in.DateUploaded, now),
	}
	for _, err := range checks {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	if len(in.Audio) == 0 {
		return invalidf("track file is required")
	}
	return nil
}

// Upload creates a track: audio blob, optional album art blob, track
// document, uploader link. A failure at any step rolls the earlier steps back
// in reverse order.
func (s *TrackService) Upload(ctx context.Context, in UploadTrackInput) (*entity.Track, error) {
	if err := in.validate(s.now()); err != nil {
		return nil, err
	}

	// --- Preconditions: fail fast before any write ---
	if _, err := s.users.FindByID(ctx, in.UploaderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no account associated with uploader id", ErrNotFound)
		}
		return nil, err
	}
	if _, err := s.tracks.FindByURL(ctx, in.TrackURL); err == nil {
		return nil, fmt.Errorf("%w: trackURL already in use", ErrDuplicate)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	track := &entity.Track{
		Title:        in.Title,
		Genre:        in.Genre,
		Description:  in.Description,
		TrackURL:     in.TrackURL,
		City:         in.City,
		UploaderID:   in.UploaderID,
		DateUploaded: in.DateUploaded,
		Comments:     []entity.Comment{},
	}

	steps := []saga.Step{
		{
			Name: stepWriteAudio,
			Forward: func(ctx context.Context) error {
				id, err := blob.WriteBuffer(ctx, s.blobs, s.audioBucket, in.AudioContentType, in.Audio)
				if err != nil {
					return err
				}
				track.TrackBinaryID = id
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.blobs.Delete(ctx, s.audioBucket, track.TrackBinaryID)
			},
		},
	}

	if len(in.AlbumArt) > 0 {
		steps = append(steps, saga.Step{
			Name: stepWriteAlbumArt,
			Forward: func(ctx context.Context) error {
				id, err := blob.WriteBuffer(ctx, s.blobs, s.imageBucket, in.AlbumArtContentType, in.AlbumArt)
				if err != nil {
					return err
				}
				track.AlbumArtBlobID = id
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.blobs.Delete(ctx, s.imageBucket, track.AlbumArtBlobID)
			},
		})
	}

	steps = append(steps,
		saga.Step{
			Name: stepCreateTrack,
			Forward: func(ctx context.Context) error {
				id, err := s.tracks.Insert(ctx, track)
				if err != nil {
					return err
				}
				track.ID = id
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.tracks.Delete(ctx, track.ID)
			},
		},
		saga.Step{
			Name: stepLinkUploader,
			Forward: func(ctx context.Context) error {
				return s.users.AddUploadedTrack(ctx, in.UploaderID, track.ID)
			},
			Compensate: func(ctx context.Context) error {
				return s.users.RemoveUploadedTrack(ctx, in.UploaderID, track.ID)
			},
		},
	)

	res := s.exec.Run(ctx, sagaTrackUpload, steps)
	if res.OK() {
		return track, nil
	}

	// Races the preconditions could not see, caught by the writes and
	// rolled back cleanly, report as precondition failures.
	if res.State == saga.StateCompensated {
		switch {
		case res.FailedStep == stepCreateTrack && errors.Is(res.Err, store.ErrDuplicate):
			return nil, fmt.Errorf("%w: trackURL already in use", ErrDuplicate)
		case res.FailedStep == stepLinkUploader && errors.Is(res.Err, store.ErrNoMatch):
			return nil, fmt.Errorf("%w: no account associated with uploader id", ErrNotFound)
		}
	}
	return nil, sagaError(res)
}

// -------------------------------------------------------------------------
// DELETE
// -------------------------------------------------------------------------

// Delete removes a track: the document goes first, then the blobs
// best-effort. A blob delete failure leaves an orphan that is logged, never
// rolled back; the uploader's uploadedTracks entry is intentionally left in
// place.
func (s *TrackService) Delete(ctx context.Context, trackURL string, requesterID primitive.ObjectID) error {
	track, err := s.findOwnedTrack(ctx, trackURL, requesterID)
	if err != nil {
		return err
	}

	if err := s.tracks.Delete(ctx, track.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: track %q", ErrNotFound, trackURL)
		}
		return err
	}

	s.deleteTrackBlobs(ctx, track)
	return nil
}

// deleteTrackBlobs removes a deleted track's blobs best-effort. Shared with
// the user delete cascade.
func (s *TrackService) deleteTrackBlobs(ctx context.Context, track *entity.Track) {
	if err := s.blobs.Delete(ctx, s.audioBucket, track.TrackBinaryID); err != nil {
		s.logger.Warn("audio blob orphaned after track delete",
			"trackId", track.ID.Hex(), "blobId", track.TrackBinaryID, "error", err)
	}
	if track.AlbumArtBlobID != "" {
		if err := s.blobs.Delete(ctx, s.imageBucket, track.AlbumArtBlobID); err != nil {
			s.logger.Warn("album art blob orphaned after track delete",
				"trackId", track.ID.Hex(), "blobId", track.AlbumArtBlobID, "error", err)
		}
	}
}

// deleteCascade removes a track document and its blobs without an ownership
// check. Used by the user delete cascade, which already owns every track it
// touches.
func (s *TrackService) deleteCascade(ctx context.Context, trackID primitive.ObjectID) error {
	track, err := s.tracks.FindByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.tracks.Delete(ctx, track.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.deleteTrackBlobs(ctx, track)
	return nil
}

// -------------------------------------------------------------------------
// EDITS
// -------------------------------------------------------------------------

// UpdateTitle replaces a track's title. Owner only.
func (s *TrackService) UpdateTitle(ctx context.Context, trackURL string, requesterID primitive.ObjectID, title string) error {
	if err := entity.ValidateTitle(title); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	track, err := s.findOwnedTrack(ctx, trackURL, requesterID)
	if err != nil {
		return err
	}
	return s.tracks.UpdateTitle(ctx, track.ID, title)
}

// UpdateDescription replaces a track's description. Owner only; submitting
// the current description unchanged is rejected.
func (s *TrackService) UpdateDescription(ctx context.Context, trackURL string, requesterID primitive.ObjectID, description string) error {
	if err := entity.ValidateDescription(description); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	track, err := s.findOwnedTrack(ctx, trackURL, requesterID)
	if err != nil {
		return err
	}
	if track.Description == description {
		return invalidf("description is unchanged")
	}
	return s.tracks.UpdateDescription(ctx, track.ID, description)
}

// findOwnedTrack resolves a track by URL and enforces uploader ownership.
func (s *TrackService) findOwnedTrack(ctx context.Context, trackURL string, requesterID primitive.ObjectID) (*entity.Track, error) {
	track, err := s.tracks.FindByURL(ctx, trackURL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: track %q", ErrNotFound, trackURL)
		}
		return nil, err
	}
	if track.UploaderID != requesterID {
		return nil, fmt.Errorf("%w: only the uploader may modify this track", ErrForbidden)
	}
	return track, nil
}

// -------------------------------------------------------------------------
// COMMENTS
// -------------------------------------------------------------------------

// AddComment appends a comment to a track. The embedded push and the counter
// increment land in one document write.
func (s *TrackService) AddComment(ctx context.Context, trackURL string, authorID primitive.ObjectID, body string) (*entity.Comment, error) {
	if body == "" {
		return nil, invalidf("comment body is required")
	}
	if _, err := s.users.FindByID(ctx, authorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no account associated with commenter id", ErrNotFound)
		}
		return nil, err
	}

	track, err := s.tracks.FindByURL(ctx, trackURL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: track %q", ErrNotFound, trackURL)
		}
		return nil, err
	}

	comment := entity.Comment{
		ID:         primitive.NewObjectID(),
		User:       authorID,
		DatePosted: s.now(),
		Body:       body,
	}

	if err := s.tracks.AddComment(ctx, track.ID, comment); err != nil {
		if errors.Is(err, store.ErrNoMatch) {
			return nil, fmt.Errorf("%w: track %q", ErrNotFound, trackURL)
		}
		return nil, err
	}
	return &comment, nil
}

// RemoveComment deletes a comment by id. Author only; the authorship check is
// repeated inside the conditional update so a race cannot remove someone
// else's comment.
func (s *TrackService) RemoveComment(ctx context.Context, commentID, requesterID primitive.ObjectID) error {
	track, err := s.tracks.FindByCommentID(ctx, commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: comment", ErrNotFound)
		}
		return err
	}

	for _, c := range track.Comments {
		if c.ID == commentID && c.User != requesterID {
			return fmt.Errorf("%w: only the author may delete this comment", ErrForbidden)
		}
	}

	if err := s.tracks.RemoveComment(ctx, track.ID, commentID, requesterID); err != nil {
		if errors.Is(err, store.ErrNoMatch) {
			return fmt.Errorf("%w: comment", ErrNotFound)
		}
		return err
	}
	return nil
}

// Comments returns one page of a track's embedded comments.
func (s *TrackService) Comments(ctx context.Context, trackID primitive.ObjectID, page, perPage int) ([]entity.Comment, pagination.Meta, error) {
	if err := pagination.Validate(page, perPage); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	track, err := s.tracks.FindByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, pagination.Meta{}, fmt.Errorf("%w: track", ErrNotFound)
		}
		return nil, pagination.Meta{}, err
	}

	pageItems := pagination.Slice(track.Comments, page, perPage)
	meta := pagination.NewMeta(len(track.Comments), page, perPage)
	return pageItems, meta, nil
}

// -------------------------------------------------------------------------
// QUERIES
// -------------------------------------------------------------------------

// TrackQuery narrows and pages a track search.
type TrackQuery struct {
	Title      string
	TrackURL   string
	City       string
	UploaderID primitive.ObjectID
	Page       int
	PerPage    int
}

// Get returns one track by id.
func (s *TrackService) Get(ctx context.Context, id primitive.ObjectID) (*entity.Track, error) {
	track, err := s.tracks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: track", ErrNotFound)
		}
		return nil, err
	}
	return track, nil
}

// Search returns one page of tracks ordered by play count. A trackURL query
// is an exact match; title is a substring match; city is an exact match; an
// uploader id restricts the results to that account's uploads.
func (s *TrackService) Search(ctx context.Context, q TrackQuery) ([]entity.Track, pagination.Meta, error) {
	if err := pagination.Validate(q.Page, q.PerPage); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if q.TrackURL != "" {
		track, err := s.tracks.FindByURL(ctx, q.TrackURL)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, pagination.Meta{}, fmt.Errorf("%w: track %q", ErrNotFound, q.TrackURL)
			}
			return nil, pagination.Meta{}, err
		}
		// One match total; pages past it come back empty, not 404.
		items := pagination.Slice([]entity.Track{*track}, q.Page, q.PerPage)
		return items, pagination.NewMeta(1, q.Page, q.PerPage), nil
	}

	tracks, total, err := s.tracks.Find(ctx, store.TrackFilter{Title: q.Title, City: q.City, UploaderID: q.UploaderID}, q.Page, q.PerPage)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	if total == 0 {
		return nil, pagination.Meta{}, fmt.Errorf("%w: no tracks match", ErrNotFound)
	}
	return tracks, pagination.NewMeta(int(total), q.Page, q.PerPage), nil
}

// Chart returns the top tracks for a city by play count.
func (s *TrackService) Chart(ctx context.Context, city string, page, perPage int) ([]entity.Track, pagination.Meta, error) {
	if err := entity.ValidateCity(city); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := pagination.Validate(page, perPage); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	tracks, total, err := s.tracks.Chart(ctx, city, page, perPage)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return tracks, pagination.NewMeta(int(total), page, perPage), nil
}
