package models

import "time"

// The types below mirror the fleet API's resource shapes. Fields are
// pointers or zero-tolerant where the backend has historically been loose
// about what it returns (missing names, absent counts, either of two
// heartbeat fields).

// Schedule assigns a playlist to a display (or display group) for a window.
type Schedule struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	DisplayID      string `json:"displayId,omitempty"`
	DisplayGroupID string `json:"displayGroupId,omitempty"`
	PlaylistID     string `json:"playlistId,omitempty"`
	IsActive       bool   `json:"isActive"`
	StartDate      string `json:"startDate,omitempty"`
	EndDate        string `json:"endDate,omitempty"`
}

// Label returns the schedule's display name, falling back to its id.
func (s Schedule) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Display is one physical screen in the fleet.
type Display struct {
	ID                string `json:"id"`
	Name              string `json:"name,omitempty"`
	Status            string `json:"status,omitempty"`
	CurrentPlaylistID string `json:"currentPlaylistId,omitempty"`
	OrganizationID    string `json:"organizationId,omitempty"`
	LastHeartbeat     string `json:"lastHeartbeat,omitempty"`
	LastSeen          string `json:"lastSeen,omitempty"`
	Error             string `json:"error,omitempty"`
	ErrorState        string `json:"errorState,omitempty"`
}

// Label returns the display's name, falling back to its id.
func (d Display) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// MinutesSinceSeen returns minutes since the most recent heartbeat or
// lastSeen timestamp. Displays that never reported, or whose timestamp is
// unparsable, are treated as offline forever (a very large value).
func (d Display) MinutesSinceSeen(now time.Time) float64 {
	ts := d.LastHeartbeat
	if ts == "" {
		ts = d.LastSeen
	}
	if ts == "" {
		return neverSeenMinutes
	}
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return neverSeenMinutes
	}
	return now.Sub(parsed).Minutes()
}

// InErrorState reports whether the display is flagged as errored by any of
// the fields the backend has used for that over time.
func (d Display) InErrorState() bool {
	return d.Status == "error" || d.Error != "" || d.ErrorState != ""
}

const neverSeenMinutes = float64(1<<40) / 60

// PlaylistItem is one content entry in a playlist.
type PlaylistItem struct {
	ContentID string `json:"contentId"`
}

// Playlist is an ordered set of content items.
type Playlist struct {
	ID    string         `json:"id"`
	Name  string         `json:"name,omitempty"`
	Items []PlaylistItem `json:"items,omitempty"`
	Count *struct {
		Items int `json:"items"`
	} `json:"_count,omitempty"`
}

// Label returns the playlist's name, falling back to its id.
func (p Playlist) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// ItemCount resolves the playlist's item count from whichever shape the API
// returned. Returns -1 when the count is unknown; callers must treat
// unknown as "has items" to bias against false positives.
func (p Playlist) ItemCount() int {
	if p.Count != nil {
		return p.Count.Items
	}
	if p.Items != nil {
		return len(p.Items)
	}
	return -1
}

// Content is a media asset (image, video, web page, layout).
type Content struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Title     string `json:"title,omitempty"`
	Type      string `json:"type"`
	Status    string `json:"status,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
	FileSize  int64  `json:"fileSize,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Label returns the content's name or title, falling back to its id.
func (c Content) Label() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}
