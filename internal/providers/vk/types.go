package vk

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
)

// ErrorCodeAuthFailed is the API error code for an invalid or expired access token
const ErrorCodeAuthFailed = 5

var (
	// ErrNotFound is returned when the response holds no audio items
	ErrNotFound = errors.New("nothing found")
	// ErrTransport covers connection failures and non-2xx responses
	ErrTransport = errors.New("transport error")
	// ErrMalformed is returned when the envelope cannot be decoded
	ErrMalformed = errors.New("malformed response")
	// ErrNotObject is wrapped in an ItemError when a result item is not a JSON object
	ErrNotObject = errors.New("item is not an object")
)

// APIError is an error object reported by the API itself
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// AuthFailed reports whether the access token was rejected
func (e *APIError) AuthFailed() bool {
	return e.Code == ErrorCodeAuthFailed
}

// ItemError is returned when a single audio item cannot be decoded
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("audio item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Audio is one track from the search response
type Audio struct {
	ID       int64  `json:"id"`
	OwnerID  int64  `json:"owner_id"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Duration int    `json:"duration"` // seconds
	URL      string `json:"url"`
	LyricsID int64  `json:"lyrics_id,omitempty"`
	GenreID  int    `json:"genre,omitempty"`
}

// UnmarshalJSON accepts both the legacy "aid" and the current "id" key,
// numbers sent as strings, and unescapes the HTML entities the API leaves in
// names.
func (a *Audio) UnmarshalJSON(data []byte) error {
	type plain Audio
	var raw struct {
		plain
		ID       looseInt `json:"id"`
		AID      looseInt `json:"aid"`
		OwnerID  looseInt `json:"owner_id"`
		Duration looseInt `json:"duration"`
		LyricsID looseInt `json:"lyrics_id"`
		GenreID  looseInt `json:"genre"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = Audio(raw.plain)
	a.ID = int64(raw.ID)
	if a.ID == 0 {
		a.ID = int64(raw.AID)
	}
	a.OwnerID = int64(raw.OwnerID)
	a.Duration = int(raw.Duration)
	a.LyricsID = int64(raw.LyricsID)
	a.GenreID = int(raw.GenreID)
	a.Artist = html.UnescapeString(a.Artist)
	a.Title = html.UnescapeString(a.Title)
	return nil
}

// looseInt decodes a JSON number, a numeric string, or null
type looseInt int64

func (n *looseInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*n = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			*n = 0
			return nil
		}
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = looseInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = looseInt(f)
	return nil
}

// Key identifies the track across searches
func (a Audio) Key() string {
	return strconv.FormatInt(a.OwnerID, 10) + "_" + strconv.FormatInt(a.ID, 10)
}

// Source returns the locator used for playback, download and copy
func (a Audio) Source() string {
	return a.URL
}

// DisplayName returns "Artist - Title"
func (a Audio) DisplayName() string {
	return a.Artist + " - " + a.Title
}

// FormatDuration renders the duration as m:ss, or h:mm:ss past an hour
func (a Audio) FormatDuration() string {
	d := a.Duration
	if d < 0 {
		d = 0
	}
	h, m, s := d/3600, (d%3600)/60, d%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// envelope is either {"response":[...]} or {"error":{...}}
type envelope struct {
	Response []json.RawMessage `json:"response"`
	Error    *APIError         `json:"error"`
}
