package core

import (
	"encoding/base64"
	"encoding/json"
)

// Playlist describes a playlist as seen by one provider. Track membership is
// never stored on the playlist; it is fetched on demand through the port.
type Playlist struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsPublic    bool            `json:"is_public"`
	AuthorName  string          `json:"author_name,omitempty"`
	ServiceID   string          `json:"service_id,omitempty"`
	ServiceName ServiceName     `json:"service_name"`
	ServiceData json.RawMessage `json:"-"`
}

type playlistWire struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	IsPublic    bool        `json:"is_public"`
	AuthorName  string      `json:"author_name,omitempty"`
	ServiceID   string      `json:"service_id,omitempty"`
	ServiceName ServiceName `json:"service_name"`
	ServiceData string      `json:"service_data,omitempty"`
}

func (p Playlist) MarshalJSON() ([]byte, error) {
	w := playlistWire{
		Name:        p.Name,
		Description: p.Description,
		IsPublic:    p.IsPublic,
		AuthorName:  p.AuthorName,
		ServiceID:   p.ServiceID,
		ServiceName: p.ServiceName,
	}
	if len(p.ServiceData) > 0 {
		w.ServiceData = base64.StdEncoding.EncodeToString(p.ServiceData)
	}
	return json.Marshal(w)
}

func (p *Playlist) UnmarshalJSON(data []byte) error {
	var w playlistWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*p = Playlist{
		Name:        w.Name,
		Description: w.Description,
		IsPublic:    w.IsPublic,
		AuthorName:  w.AuthorName,
		ServiceID:   w.ServiceID,
		ServiceName: w.ServiceName,
	}
	if w.ServiceData != "" {
		raw, err := base64.StdEncoding.DecodeString(w.ServiceData)
		if err != nil {
			return err
		}
		p.ServiceData = raw
	}
	return nil
}
