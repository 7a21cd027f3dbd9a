// -------------------------------------------------------------------------------
// HTTP Server - User Handlers
//
// Project: Streamlo
//
// Account queries, profile updates, profile images, the follow graph and
// liked tracks. Profile images fall back to the bundled default asset when an
// account never uploaded one.
// -------------------------------------------------------------------------------

package server

import (
	"errors"
	"net/http"

	"github.com/dunguyenn/StreamloWebservice/internal/blob"
	"github.com/dunguyenn/StreamloWebservice/internal/entity"
	"github.com/dunguyenn/StreamloWebservice/internal/service"
)

// -------------------------------------------------------------------------
// QUERIES
// -------------------------------------------------------------------------

// userPage is the paginated user response envelope.
type userPage struct {
	Users     []entity.User `json:"users"`
	Total     int           `json:"total"`
	Page      int           `json:"page"`
	PageCount int           `json:"pageCount"`
}

// handleSearchUsers returns a page of users filtered by display name or
// userURL.
func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, meta, err := s.Users.Search(r.Context(), service.UserQuery{
		DisplayName: r.URL.Query().Get("display_name"),
		UserURL:     r.URL.Query().Get("userURL"),
		City:        r.URL.Query().Get("city"),
		Page:        page,
		PerPage:     perPage,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userPage{
		Users:     users,
		Total:     meta.Total,
		Page:      meta.Page,
		PageCount: meta.PageCount,
	})
}

// handleGetUser returns a single user.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.Users.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleFollowees returns a page of the accounts a user follows. A page past
// the end is a valid empty page, not an error.
func (s *Server) handleFollowees(w http.ResponseWriter, r *http.Request) {
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, perPage, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	followees, meta, err := s.Users.Followees(r.Context(), userID, page, perPage)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := struct {
		Followees []entity.Followee `json:"followees"`
		Total     int               `json:"total"`
		Page      int               `json:"page"`
		PageCount int               `json:"pageCount"`
		Message   string            `json:"message,omitempty"`
	}{Followees: followees, Total: meta.Total, Page: meta.Page, PageCount: meta.PageCount}

	if len(followees) == 0 {
		resp.Message = "no followees on this page"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLikedTracks returns a page of the tracks a user has liked.
func (s *Server) handleLikedTracks(w http.ResponseWriter, r *http.Request) {
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, perPage, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	liked, meta, err := s.Users.LikedTracks(r.Context(), userID, page, perPage)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := struct {
		LikedTracks []entity.LikedTrack `json:"likedTracks"`
		Total       int                 `json:"total"`
		Page        int                 `json:"page"`
		PageCount   int                 `json:"pageCount"`
		Message     string              `json:"message,omitempty"`
	}{LikedTracks: liked, Total: meta.Total, Page: meta.Page, PageCount: meta.PageCount}

	if len(liked) == 0 {
		resp.Message = "no liked tracks on this page"
	}
	writeJSON(w, http.StatusOK, resp)
}

// -------------------------------------------------------------------------
// PROFILE IMAGE
// -------------------------------------------------------------------------

// handleProfileImage streams a user's profile image, or the default asset
// when none was ever uploaded.
func (s *Server) handleProfileImage(w http.ResponseWriter, r *http.Request) {
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.Users.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	opts := blob.StreamOptions{
		ContentType: "image/png",
		Fallback:    blob.FileFallback(s.Assets.DefaultProfileImage, "image/png"),
	}
	if err := opts.Stream(r.Context(), w, s.Blobs, s.BlobStore.ImageBucket, user.ProfileImageBlobID); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile image not found")
		}
		return
	}
}

// handleSetProfileImage replaces the requester's profile image.
func (s *Server) handleSetProfileImage(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}
	defer cleanupMultipart(r.MultipartForm)

	data, contentType, err := readFormFile(r, "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read image file")
		return
	}

	if err := s.Users.SetProfileImage(r.Context(), userID, requesterID, data, contentType); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "profile image updated"})
}

// -------------------------------------------------------------------------
// PROFILE / ACCOUNT
// -------------------------------------------------------------------------

// handleUpdateUser applies a partial profile update.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		UserURL     string `json:"userURL"`
		DisplayName string `json:"displayName"`
		City        string `json:"city"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.Users.UpdateProfile(r.Context(), userID, requesterID, service.UpdateProfileInput{
		Email:       req.Email,
		Password:    req.Password,
		UserURL:     req.UserURL,
		DisplayName: req.DisplayName,
		City:        req.City,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "profile updated"})
}

// handleDeleteUser removes the requester's own account and cascades.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Users.Delete(r.Context(), userID, requesterID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

// -------------------------------------------------------------------------
// FOLLOW GRAPH
// -------------------------------------------------------------------------

// handleFollow adds a followee to the requester's account.
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		FolloweeUserID string `json:"followeeUserId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	followeeID, err := parseObjectID(req.FolloweeUserID, "followeeUserId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Users.Follow(r.Context(), userID, followeeID, requesterID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "now following"})
}

// handleUnfollow removes a followee from the requester's account.
func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	followeeID, err := pathObjectID(r, "followeeUserId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Users.Unfollow(r.Context(), userID, followeeID, requesterID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "no longer following"})
}

// -------------------------------------------------------------------------
// LIKES
// -------------------------------------------------------------------------

// handleLike records a track like for the requester.
func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trackID, err := pathObjectID(r, "trackId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Users.Like(r.Context(), userID, trackID, requesterID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "track liked"})
}

// handleUnlike removes a track like for the requester.
func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trackID, err := pathObjectID(r, "trackId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Users.Unlike(r.Context(), userID, trackID, requesterID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "track unliked"})
}
