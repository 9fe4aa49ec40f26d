// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package core

import "time"

// Status is the coarse online state reported by the presence gateway.
type Status string

const (
	StatusOnline       Status = "online"
	StatusIdle         Status = "idle"
	StatusDoNotDisturb Status = "dnd"
	StatusOffline      Status = "offline"
)

// ActivityType mirrors the small integer codes used on the wire.
type ActivityType int

const (
	ActivityTypeGame ActivityType = iota
	ActivityTypeStreaming
	ActivityTypeListening
	ActivityTypeWatching
	ActivityTypeCustom
	ActivityTypeCompeting
)

// Timestamps is an absolute epoch-millisecond time range. End may be zero
// for open-ended activities.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

type Emoji struct {
	Name     string `json:"name,omitempty"`
	ID       string `json:"id,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity is one entry of a snapshot's activity list. Every field except
// Name and Type is routinely absent on the wire.
type Activity struct {
	Type          ActivityType `json:"type"`
	Name          string       `json:"name"`
	Details       string       `json:"details,omitempty"`
	State         string       `json:"state,omitempty"`
	ApplicationID string       `json:"application_id,omitempty"`
	Timestamps    *Timestamps  `json:"timestamps,omitempty"`
	Assets        *Assets      `json:"assets,omitempty"`
	Emoji         *Emoji       `json:"emoji,omitempty"`
}

type DiscordUser struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	GlobalName       string `json:"global_name,omitempty"`
	Avatar           string `json:"avatar,omitempty"`
	Banner           string `json:"banner,omitempty"`
	AvatarDecoration string `json:"avatar_decoration,omitempty"`
}

// SpotifyActivity is the dedicated music block of a snapshot.
type SpotifyActivity struct {
	TrackID     string     `json:"track_id"`
	Song        string     `json:"song"`
	Artist      string     `json:"artist"`
	Album       string     `json:"album"`
	AlbumArtURL string     `json:"album_art_url"`
	Timestamps  Timestamps `json:"timestamps"`
}

// PresenceSnapshot is one complete, self-consistent presence payload. It is
// replaced wholesale on every gateway push and never merged field-by-field.
type PresenceSnapshot struct {
	User               DiscordUser      `json:"discord_user"`
	Status             Status           `json:"discord_status"`
	Activities         []Activity       `json:"activities"`
	ListeningToSpotify bool             `json:"listening_to_spotify"`
	Spotify            *SpotifyActivity `json:"spotify,omitempty"`
}

// Valid reports whether the snapshot carries the minimal required fields.
// Everything else is optional; the gateway omits fields inconsistently.
func (s PresenceSnapshot) Valid() bool {
	return s.User.ID != "" && s.Status != ""
}

// Clone returns a deep copy so that no consumer can mutate shared state.
func (s PresenceSnapshot) Clone() PresenceSnapshot {
	cp := s
	if s.Activities != nil {
		cp.Activities = make([]Activity, len(s.Activities))
		copy(cp.Activities, s.Activities)
		for i, a := range s.Activities {
			if a.Timestamps != nil {
				ts := *a.Timestamps
				cp.Activities[i].Timestamps = &ts
			}
			if a.Assets != nil {
				as := *a.Assets
				cp.Activities[i].Assets = &as
			}
			if a.Emoji != nil {
				em := *a.Emoji
				cp.Activities[i].Emoji = &em
			}
		}
	}
	if s.Spotify != nil {
		sp := *s.Spotify
		cp.Spotify = &sp
	}
	return cp
}

// SnapshotEvent is the unit of fan-out inside the engine: one accepted
// snapshot for one watched user, stamped with a delivery id.
type SnapshotEvent struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Initial   bool             `json:"initial"`
	Snapshot  PresenceSnapshot `json:"snapshot"`
	Timestamp time.Time        `json:"timestamp"`
}

// WatchRoute binds a display surface to the watched user whose feed it serves.
type WatchRoute struct {
	Source string `yaml:"source"`
	UserID string `yaml:"user_id"`
}
