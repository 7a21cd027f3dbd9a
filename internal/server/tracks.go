// -------------------------------------------------------------------------------
// HTTP Server - Track Handlers
//
// Project: Streamlo
//
// Track upload, streaming, editing, comments and queries. Uploads arrive as
// multipart forms capped at the configured size before any byte is buffered;
// audio streams straight from the blob store to the response.
// -------------------------------------------------------------------------------

package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dunguyenn/StreamloWebservice/internal/blob"
	"github.com/dunguyenn/StreamloWebservice/internal/entity"
	"github.com/dunguyenn/StreamloWebservice/internal/pagination"
	"github.com/dunguyenn/StreamloWebservice/internal/service"
)

// multipartMemory caps the in-memory part buffer; larger parts spill to disk.
const multipartMemory = 1 << 20

// -------------------------------------------------------------------------
// QUERIES
// -------------------------------------------------------------------------

// trackPage is the paginated track response envelope.
type trackPage struct {
	Tracks    []entity.Track `json:"tracks"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	PageCount int            `json:"pageCount"`
	Message   string         `json:"message,omitempty"`
}

// handleSearchTracks returns a page of tracks filtered by title, trackURL or
// city.
func (s *Server) handleSearchTracks(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tracks, meta, err := s.Tracks.Search(r.Context(), service.TrackQuery{
		Title:    r.URL.Query().Get("title"),
		TrackURL: r.URL.Query().Get("trackURL"),
		City:     r.URL.Query().Get("city"),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trackPage{
		Tracks:    tracks,
		Total:     meta.Total,
		Page:      meta.Page,
		PageCount: meta.PageCount,
	})
}

// handleTracksByUploader returns a page of the tracks one user uploaded.
func (s *Server) handleTracksByUploader(w http.ResponseWriter, r *http.Request) {
	uploaderID, err := pathObjectID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, perPage, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tracks, meta, err := s.Tracks.Search(r.Context(), service.TrackQuery{
		UploaderID: uploaderID,
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trackPage{
		Tracks:    tracks,
		Total:     meta.Total,
		Page:      meta.Page,
		PageCount: meta.PageCount,
	})
}

// handleChart returns the top tracks for a city.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")

	tracks, meta, err := s.Tracks.Chart(r.Context(), city, pagination.DefaultPage, pagination.MaxPerPage)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := trackPage{
		Tracks:    tracks,
		Total:     meta.Total,
		Page:      meta.Page,
		PageCount: meta.PageCount,
	}
	if len(tracks) == 0 {
		resp.Message = "no tracks uploaded for this city yet"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTrackComments returns a page of a track's comments.
func (s *Server) handleTrackComments(w http.ResponseWriter, r *http.Request) {
	trackID, err := pathObjectID(r, "trackId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, perPage, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, meta, err := s.Tracks.Comments(r.Context(), trackID, page, perPage)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := struct {
		Comments  []entity.Comment `json:"comments"`
		Total     int              `json:"total"`
		Page      int              `json:"page"`
		PageCount int              `json:"pageCount"`
		Message   string           `json:"message,omitempty"`
	}{Comments: comments, Total: meta.Total, Page: meta.Page, PageCount: meta.PageCount}

	if len(comments) == 0 {
		resp.Message = "no comments on this page"
	}
	writeJSON(w, http.StatusOK, resp)
}

// -------------------------------------------------------------------------
// STREAMING
// -------------------------------------------------------------------------

// handleStreamTrack streams a track's audio blob. The audio blob is required:
// a track document pointing at a missing blob is a 404, never a silent
// substitute.
func (s *Server) handleStreamTrack(w http.ResponseWriter, r *http.Request) {
	trackID, err := pathObjectID(r, "trackId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	track, err := s.Tracks.Get(r.Context(), trackID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	opts := blob.StreamOptions{ContentType: "audio/mpeg"}
	if err := opts.Stream(r.Context(), w, s.Blobs, s.BlobStore.AudioBucket, track.TrackBinaryID); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "track audio not found")
			return
		}
		// Headers may already be out; nothing more can reach the client.
		return
	}
}

// -------------------------------------------------------------------------
// UPLOAD
// -------------------------------------------------------------------------

// readFormFile buffers one multipart file. A missing part returns nil bytes
// and no error.
func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Header.Get("Content-Type"), nil
}

// handleUploadTrack accepts a multipart track upload and runs the upload
// saga. The body is capped before parsing so an oversized upload never
// reaches a saga step.
func (s *Server) handleUploadTrack(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
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

	audio, audioType, err := readFormFile(r, "track")
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read track file")
		return
	}
	art, artType, err := readFormFile(r, "albumArt")
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read album art file")
		return
	}

	dateUploaded := time.Now()
	if v := r.FormValue("dateUploaded"); v != "" {
		dateUploaded, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "dateUploaded must be RFC 3339")
			return
		}
	}

	track, err := s.Tracks.Upload(r.Context(), service.UploadTrackInput{
		Title:               r.FormValue("title"),
		Genre:               r.FormValue("genre"),
		Description:         r.FormValue("description"),
		TrackURL:            r.FormValue("trackURL"),
		City:                r.FormValue("city"),
		UploaderID:          requesterID,
		DateUploaded:        dateUploaded,
		Audio:               audio,
		AudioContentType:    audioType,
		AlbumArt:            art,
		AlbumArtContentType: artType,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message":  "track uploaded",
		"trackId":  track.ID.Hex(),
		"trackURL": track.TrackURL,
	})
}

// cleanupMultipart removes any temp files the form parser spilled to disk.
func cleanupMultipart(form *multipart.Form) {
	if form != nil {
		_ = form.RemoveAll()
	}
}

// -------------------------------------------------------------------------
// EDITS / DELETE
// -------------------------------------------------------------------------

// handleUpdateTitle replaces a track's title.
func (s *Server) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Tracks.UpdateTitle(r.Context(), r.PathValue("trackURL"), requesterID, req.Title); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "title updated"})
}

// handleUpdateDescription replaces a track's description.
func (s *Server) handleUpdateDescription(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Tracks.UpdateDescription(r.Context(), r.PathValue("trackURL"), requesterID, req.Description); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "description updated"})
}

// handleDeleteTrack removes a track and its blobs.
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := s.Tracks.Delete(r.Context(), r.PathValue("trackURL"), requesterID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "track deleted"})
}

// -------------------------------------------------------------------------
// COMMENTS
// -------------------------------------------------------------------------

// handleAddComment appends a comment to a track.
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := s.Tracks.AddComment(r.Context(), r.PathValue("trackURL"), requesterID, req.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// handleRemoveComment deletes the requester's own comment.
func (s *Server) handleRemoveComment(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	commentID, err := pathObjectID(r, "commentId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Tracks.RemoveComment(r.Context(), commentID, requesterID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "comment deleted"})
}
