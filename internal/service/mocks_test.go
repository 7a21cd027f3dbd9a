// -------------------------------------------------------------------------------
// Service Tests - In-Memory Store Mocks
//
// Project: Streamlo
//
// Hand-written mocks for the entity and blob stores. Conditional updates
// mirror the real store contract: the precondition lives in the update, a
// miss returns ErrNoMatch, and nothing is half-applied. Each method consults
// errOn first so tests can fail any single step.
// -------------------------------------------------------------------------------

package service

import (
	"context"
	"io"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dunguyenn/StreamloWebservice/internal/blob"
	"github.com/dunguyenn/StreamloWebservice/internal/entity"
	"github.com/dunguyenn/StreamloWebservice/internal/store"
)

// -------------------------------------------------------------------------
// USER STORE MOCK
// -------------------------------------------------------------------------

type mockUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*entity.User
	errOn map[string]error
	calls []string
}

var _ store.UserStore = (*mockUserStore)(nil)

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users: make(map[primitive.ObjectID]*entity.User),
		errOn: make(map[string]error),
	}
}

// add seeds a user and returns its generated id.
func (m *mockUserStore) add(u *entity.User) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.ID] = u
	return u.ID
}

func (m *mockUserStore) get(id primitive.ObjectID) *entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

// enter records the call and returns any injected error.
func (m *mockUserStore) enter(method string) error {
	m.calls = append(m.calls, method)
	return m.errOn[method]
}

func (m *mockUserStore) Insert(_ context.Context, u *entity.User) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Insert"); err != nil {
		return primitive.NilObjectID, err
	}
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.UserURL == u.UserURL {
			return primitive.NilObjectID, store.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *mockUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindByID"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *mockUserStore) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindByEmail"); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) FindByUserURL(_ context.Context, userURL string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindByUserURL"); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.UserURL == userURL {
			clone := *u
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) Find(_ context.Context, f store.UserFilter, page, perPage int) ([]entity.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Find"); err != nil {
		return nil, 0, err
	}
	var matched []entity.User
	for _, u := range m.users {
		if f.DisplayName != "" && !strings.Contains(strings.ToLower(u.DisplayName), strings.ToLower(f.DisplayName)) {
			continue
		}
		if f.City != "" && u.City != f.City {
			continue
		}
		matched = append(matched, *u)
	}
	total := int64(len(matched))
	start := (page - 1) * perPage
	if start >= len(matched) {
		return nil, total, nil
	}
	end := min(start+perPage, len(matched))
	return matched[start:end], total, nil
}

func (m *mockUserStore) UpdateProfile(_ context.Context, id primitive.ObjectID, in entity.UserProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateProfile"); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok {
		return store.ErrNoMatch
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if in.Password != "" {
		u.Password = in.Password
	}
	if in.UserURL != "" {
		u.UserURL = in.UserURL
	}
	if in.DisplayName != "" {
		u.DisplayName = in.DisplayName
	}
	if in.City != "" {
		u.City = in.City
	}
	return nil
}

func (m *mockUserStore) SetProfileImage(_ context.Context, id primitive.ObjectID, blobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SetProfileImage"); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok {
		return store.ErrNoMatch
	}
	u.ProfileImageBlobID = blobID
	return nil
}

func (m *mockUserStore) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Delete"); err != nil {
		return err
	}
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserStore) AddFollowee(_ context.Context, followerID, followeeID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddFollowee"); err != nil {
		return err
	}
	u, ok := m.users[followerID]
	if !ok {
		return store.ErrNoMatch
	}
	for _, f := range u.Followees {
		if f.UserID == followeeID {
			return store.ErrNoMatch
		}
	}
	u.Followees = append(u.Followees, entity.Followee{UserID: followeeID})
	u.NumberOfFollowees++
	return nil
}

func (m *mockUserStore) RemoveFollowee(_ context.Context, followerID, followeeID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RemoveFollowee"); err != nil {
		return err
	}
	u, ok := m.users[followerID]
	if !ok {
		return store.ErrNoMatch
	}
	for i, f := range u.Followees {
		if f.UserID == followeeID {
			u.Followees = append(u.Followees[:i], u.Followees[i+1:]...)
			u.NumberOfFollowees--
			return nil
		}
	}
	return store.ErrNoMatch
}

func (m *mockUserStore) IncFollowers(_ context.Context, id primitive.ObjectID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("IncFollowers"); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok {
		return store.ErrNoMatch
	}
	u.NumberOfFollowers += delta
	return nil
}

func (m *mockUserStore) AddLikedTrack(_ context.Context, userID, trackID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddLikedTrack"); err != nil {
		return err
	}
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNoMatch
	}
	for _, lt := range u.LikedTracks {
		if lt.TrackID == trackID {
			return store.ErrNoMatch
		}
	}
	u.LikedTracks = append(u.LikedTracks, entity.LikedTrack{TrackID: trackID})
	return nil
}

func (m *mockUserStore) RemoveLikedTrack(_ context.Context, userID, trackID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RemoveLikedTrack"); err != nil {
		return err
	}
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNoMatch
	}
	for i, lt := range u.LikedTracks {
		if lt.TrackID == trackID {
			u.LikedTracks = append(u.LikedTracks[:i], u.LikedTracks[i+1:]...)
			return nil
		}
	}
	return store.ErrNoMatch
}

func (m *mockUserStore) AddUploadedTrack(_ context.Context, userID, trackID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddUploadedTrack"); err != nil {
		return err
	}
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNoMatch
	}
	for _, ut := range u.UploadedTracks {
		if ut.TrackID == trackID {
			return store.ErrNoMatch
		}
	}
	u.UploadedTracks = append(u.UploadedTracks, entity.UploadedTrack{TrackID: trackID})
	u.NumberOfTracksUploaded++
	return nil
}

func (m *mockUserStore) RemoveUploadedTrack(_ context.Context, userID, trackID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RemoveUploadedTrack"); err != nil {
		return err
	}
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNoMatch
	}
	for i, ut := range u.UploadedTracks {
		if ut.TrackID == trackID {
			u.UploadedTracks = append(u.UploadedTracks[:i], u.UploadedTracks[i+1:]...)
			u.NumberOfTracksUploaded--
			return nil
		}
	}
	return store.ErrNoMatch
}

// -------------------------------------------------------------------------
// TRACK STORE MOCK
// -------------------------------------------------------------------------

type mockTrackStore struct {
	mu     sync.Mutex
	tracks map[primitive.ObjectID]*entity.Track
	errOn  map[string]error
	calls  []string
}

var _ store.TrackStore = (*mockTrackStore)(nil)

func newMockTrackStore() *mockTrackStore {
	return &mockTrackStore{
		tracks: make(map[primitive.ObjectID]*entity.Track),
		errOn:  make(map[string]error),
	}
}

func (m *mockTrackStore) add(t *entity.Track) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	m.tracks[t.ID] = t
	return t.ID
}

func (m *mockTrackStore) get(id primitive.ObjectID) *entity.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracks[id]
}

func (m *mockTrackStore) enter(method string) error {
	m.calls = append(m.calls, method)
	return m.errOn[method]
}

func (m *mockTrackStore) Insert(_ context.Context, t *entity.Track) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Insert"); err != nil {
		return primitive.NilObjectID, err
	}
	for _, existing := range m.tracks {
		if existing.TrackURL == t.TrackURL {
			return primitive.NilObjectID, store.ErrDuplicate
		}
	}
	t.ID = primitive.NewObjectID()
	m.tracks[t.ID] = t
	return t.ID, nil
}

func (m *mockTrackStore) FindByID(_ context.Context, id primitive.ObjectID) (*entity.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindByID"); err != nil {
		return nil, err
	}
	t, ok := m.tracks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (m *mockTrackStore) FindByURL(_ context.Context, trackURL string) (*entity.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindByURL"); err != nil {
		return nil, err
	}
	for _, t := range m.tracks {
		if t.TrackURL == trackURL {
			clone := *t
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockTrackStore) FindByCommentID(_ context.Context, commentID primitive.ObjectID) (*entity.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindByCommentID"); err != nil {
		return nil, err
	}
	for _, t := range m.tracks {
		for _, c := range t.Comments {
			if c.ID == commentID {
				clone := *t
				return &clone, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockTrackStore) Find(_ context.Context, f store.TrackFilter, page, perPage int) ([]entity.Track, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Find"); err != nil {
		return nil, 0, err
	}
	var matched []entity.Track
	for _, t := range m.tracks {
		if f.Title != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Title)) {
			continue
		}
		if f.City != "" && t.City != f.City {
			continue
		}
		if !f.UploaderID.IsZero() && t.UploaderID != f.UploaderID {
			continue
		}
		matched = append(matched, *t)
	}
	total := int64(len(matched))
	start := (page - 1) * perPage
	if start >= len(matched) {
		return nil, total, nil
	}
	end := min(start+perPage, len(matched))
	return matched[start:end], total, nil
}

func (m *mockTrackStore) Chart(ctx context.Context, city string, page, perPage int) ([]entity.Track, int64, error) {
	return m.Find(ctx, store.TrackFilter{City: city}, page, perPage)
}

func (m *mockTrackStore) UpdateTitle(_ context.Context, id primitive.ObjectID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateTitle"); err != nil {
		return err
	}
	t, ok := m.tracks[id]
	if !ok {
		return store.ErrNoMatch
	}
	t.Title = title
	return nil
}

func (m *mockTrackStore) UpdateDescription(_ context.Context, id primitive.ObjectID, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateDescription"); err != nil {
		return err
	}
	t, ok := m.tracks[id]
	if !ok {
		return store.ErrNoMatch
	}
	t.Description = description
	return nil
}

func (m *mockTrackStore) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Delete"); err != nil {
		return err
	}
	if _, ok := m.tracks[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.tracks, id)
	return nil
}

func (m *mockTrackStore) IncLikes(_ context.Context, id primitive.ObjectID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("IncLikes"); err != nil {
		return err
	}
	t, ok := m.tracks[id]
	if !ok {
		return store.ErrNoMatch
	}
	t.NumLikes += delta
	return nil
}

func (m *mockTrackStore) AddComment(_ context.Context, trackID primitive.ObjectID, c entity.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddComment"); err != nil {
		return err
	}
	t, ok := m.tracks[trackID]
	if !ok {
		return store.ErrNoMatch
	}
	t.Comments = append(t.Comments, c)
	t.NumComments++
	return nil
}

func (m *mockTrackStore) RemoveComment(_ context.Context, trackID, commentID, authorID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RemoveComment"); err != nil {
		return err
	}
	t, ok := m.tracks[trackID]
	if !ok {
		return store.ErrNoMatch
	}
	for i, c := range t.Comments {
		if c.ID == commentID && c.User == authorID {
			t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
			t.NumComments--
			return nil
		}
	}
	return store.ErrNoMatch
}

// -------------------------------------------------------------------------
// BLOB STORE MOCK
// -------------------------------------------------------------------------

type mockBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte // key: bucket/id
	putErr    error
	deleteErr error
	deletes   []string
}

var _ blob.Store = (*mockBlobStore)(nil)

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{blobs: make(map[string][]byte)}
}

func (m *mockBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func (m *mockBlobStore) Put(_ context.Context, bucket, id string, body io.Reader, _ int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.blobs[bucket+"/"+id] = data
	return nil
}

func (m *mockBlobStore) Open(_ context.Context, bucket, id string) (*blob.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[bucket+"/"+id]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return &blob.Object{
		Body: io.NopCloser(strings.NewReader(string(data))),
		Size: int64(len(data)),
	}, nil
}

func (m *mockBlobStore) Delete(_ context.Context, bucket, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, bucket+"/"+id)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.blobs, bucket+"/"+id)
	return nil
}
